// Package metering carries slice meter programming from the arbitrator to the
// switches. Updates flow as go-events so a slow switch agent never stalls the
// arbitration loop.
package metering

import (
	"fmt"
	"sort"
	"sync"

	events "github.com/docker/go-events"
	"github.com/sirupsen/logrus"

	"github.com/ring-sim/ring-sim/sim"
)

// Update is one meter programming command for a slice on a link direction.
type Update struct {
	Link  sim.LinkID
	Dir   sim.Direction
	Slice sim.SliceID
	Kbps  int64
}

func (u Update) String() string {
	return fmt.Sprintf("link %d %s slice %d -> %d kbps", u.Link, u.Dir, u.Slice, u.Kbps)
}

type meterKey struct {
	link  sim.LinkID
	dir   sim.Direction
	slice sim.SliceID
}

// Recorder keeps the last programmed rate of every meter. It is both a
// sim.MeterProgrammer and an events.Sink, so it can sit directly behind the
// arbitrator or at the end of an event pipeline.
type Recorder struct {
	mu      sync.Mutex
	rates   map[meterKey]int64
	updates int
	closed  bool
}

var (
	_ sim.MeterProgrammer = (*Recorder)(nil)
	_ events.Sink         = (*Recorder)(nil)
)

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{rates: make(map[meterKey]int64)}
}

func (r *Recorder) SetMeterRate(link sim.LinkID, dir sim.Direction, slice sim.SliceID, kbps int64) {
	r.record(Update{Link: link, Dir: dir, Slice: slice, Kbps: kbps})
}

// Write implements events.Sink. Events other than Update are ignored.
func (r *Recorder) Write(event events.Event) error {
	u, ok := event.(Update)
	if !ok {
		logrus.Debugf("meter recorder: ignoring %T", event)
		return nil
	}
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return events.ErrSinkClosed
	}
	r.record(u)
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return events.ErrSinkClosed
	}
	r.closed = true
	return nil
}

func (r *Recorder) record(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rates[meterKey{u.Link, u.Dir, u.Slice}] = u.Kbps
	r.updates++
}

// Rate returns the last programmed rate in kbps.
func (r *Recorder) Rate(link sim.LinkID, dir sim.Direction, slice sim.SliceID) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kbps, ok := r.rates[meterKey{link, dir, slice}]
	return kbps, ok
}

// Updates returns the number of programming commands received.
func (r *Recorder) Updates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}

// Snapshot returns the programmed meters ordered by link, direction and slice.
func (r *Recorder) Snapshot() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Update, 0, len(r.rates))
	for k, kbps := range r.rates {
		out = append(out, Update{Link: k.link, Dir: k.dir, Slice: k.slice, Kbps: kbps})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Link != b.Link {
			return a.Link < b.Link
		}
		if a.Dir != b.Dir {
			return a.Dir < b.Dir
		}
		return a.Slice < b.Slice
	})
	return out
}

// SinkProgrammer is a sim.MeterProgrammer that publishes every command as an
// Update into an unbounded events.Queue in front of dst. SetMeterRate never
// blocks on dst.
type SinkProgrammer struct {
	queue *events.Queue
}

var _ sim.MeterProgrammer = (*SinkProgrammer)(nil)

// NewSinkProgrammer starts the queue goroutine feeding dst.
func NewSinkProgrammer(dst events.Sink) *SinkProgrammer {
	return &SinkProgrammer{queue: events.NewQueue(dst)}
}

func (p *SinkProgrammer) SetMeterRate(link sim.LinkID, dir sim.Direction, slice sim.SliceID, kbps int64) {
	u := Update{Link: link, Dir: dir, Slice: slice, Kbps: kbps}
	if err := p.queue.Write(u); err != nil {
		logrus.Warnf("dropping meter update (%s): %v", u, err)
	}
}

// Close flushes pending updates to the sink and closes it.
func (p *SinkProgrammer) Close() error {
	return p.queue.Close()
}

// LogSink logs every Update at debug level.
type LogSink struct{}

func (LogSink) Write(event events.Event) error {
	if u, ok := event.(Update); ok {
		logrus.Debugf("meter %s", u)
	}
	return nil
}

func (LogSink) Close() error { return nil }

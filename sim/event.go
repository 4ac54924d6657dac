package sim

import (
	"github.com/sirupsen/logrus"
)

// Event defines the interface for all simulation events.
// Each event has a Timestamp (in ticks), a Priority that orders events sharing a
// timestamp, and an Execute method that advances simulation state when invoked.
type Event interface {
	Timestamp() int64
	Priority() int // 0=Release, 1=Request, 2=UsageSample, 3=ArbitrationTick
	Execute(*Simulator)
}

// eventEntry wraps an Event with a sequence ID for deterministic FIFO
// tie-breaking when timestamp and priority are equal.
type eventEntry struct {
	event Event
	seqID int64
}

// EventQueue is a min-heap ordered by (Timestamp, Priority, seqID).
// Implements heap.Interface.
type EventQueue []eventEntry

func (q EventQueue) Len() int { return len(q) }

func (q EventQueue) Less(i, j int) bool {
	if q[i].event.Timestamp() != q[j].event.Timestamp() {
		return q[i].event.Timestamp() < q[j].event.Timestamp()
	}
	if q[i].event.Priority() != q[j].event.Priority() {
		return q[i].event.Priority() < q[j].event.Priority()
	}
	return q[i].seqID < q[j].seqID
}

func (q EventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *EventQueue) Push(x any) {
	*q = append(*q, x.(eventEntry))
}

func (q *EventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// BearerReleaseEvent ends a bearer. Priority 0: capacity freed at a timestamp is
// visible to requests arriving at the same timestamp.
type BearerReleaseEvent struct {
	time   int64
	bearer BearerID
}

func (e *BearerReleaseEvent) Timestamp() int64 { return e.time }
func (e *BearerReleaseEvent) Priority() int     { return 0 }

// Execute releases the bearer's reservation and forgets it.
func (e *BearerReleaseEvent) Execute(sim *Simulator) {
	logrus.Debugf("<< BearerRelease: %d at %d ticks", e.bearer, e.time)
	sim.pendingBearerEvents--
	sim.release(e.bearer)
}

// BearerRequestEvent asks the routing engine to admit a bearer.
type BearerRequestEvent struct {
	time   int64
	bearer *BearerInfo
}

func (e *BearerRequestEvent) Timestamp() int64 { return e.time }
func (e *BearerRequestEvent) Priority() int     { return 1 }

// Execute runs admission and schedules the release of an admitted bearer.
func (e *BearerRequestEvent) Execute(sim *Simulator) {
	logrus.Debugf("<< BearerRequest: %d (slice %d) at %d ticks", e.bearer.ID, e.bearer.Slice, e.time)
	sim.pendingBearerEvents--
	sim.request(e.bearer)
}

// UsageSampleEvent refreshes the EWMA usage estimates of every ledger.
type UsageSampleEvent struct {
	time int64
}

func (e *UsageSampleEvent) Timestamp() int64 { return e.time }
func (e *UsageSampleEvent) Priority() int     { return 2 }

// Execute samples usage and reschedules itself while bearers are pending or held.
func (e *UsageSampleEvent) Execute(sim *Simulator) {
	sim.Sampler.Sample()
	if sim.busy() {
		sim.Schedule(&UsageSampleEvent{time: e.time + sim.sampleInterval})
	}
}

// ArbitrationTickEvent runs one slice arbitration round.
type ArbitrationTickEvent struct {
	time int64
}

func (e *ArbitrationTickEvent) Timestamp() int64 { return e.time }
func (e *ArbitrationTickEvent) Priority() int     { return 3 }

// Execute runs the arbitrator and reschedules itself while bearers are pending or held.
func (e *ArbitrationTickEvent) Execute(sim *Simulator) {
	logrus.Debugf("<< ArbitrationTick at %d ticks", e.time)
	sim.arbitrate()
	if sim.busy() {
		sim.Schedule(&ArbitrationTickEvent{time: e.time + sim.arbitrationInterval})
	}
}

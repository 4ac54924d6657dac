package sim

import (
	"container/heap"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ring-sim/ring-sim/sim/trace"
)

// SimConfig groups everything NewSimulator needs besides the bearer registry
// and the meter programmer.
type SimConfig struct {
	Network    NetworkConfig
	Horizon    int64 // ticks (µs); events after the horizon are not executed
	TraceLevel trace.TraceLevel
}

// Ticks converts a wall-clock duration to simulation ticks (µs).
func Ticks(d time.Duration) int64 {
	return int64(d / time.Microsecond)
}

// Simulator drives the resource manager with a discrete event loop. Bearer
// requests, releases, usage samples and arbitration ticks are serialized
// through one event queue, so no handler ever observes another mid-flight.
type Simulator struct {
	Clock   int64
	Horizon int64

	Network    *RingNetwork
	Engine     *RoutingDecisionEngine
	Arbitrator *SliceArbitrator
	Sampler    *UsageSampler // nil when usage sampling is disabled
	Registry   BearerRegistry
	Metrics    *Metrics
	Trace      *trace.SimulationTrace // nil when tracing is disabled

	events              EventQueue
	seq                 int64
	pendingBearerEvents int
	arbitrationInterval int64
	sampleInterval      int64
	started             bool
}

// NewSimulator validates cfg and builds the ring, its ledgers and the control
// components. meters may be nil.
func NewSimulator(cfg SimConfig, registry BearerRegistry, meters MeterProgrammer) (*Simulator, error) {
	if err := cfg.Network.Validate(); err != nil {
		return nil, fmt.Errorf("invalid network config: %w", err)
	}
	if !trace.IsValidTraceLevel(string(cfg.TraceLevel)) {
		return nil, fmt.Errorf("unknown trace level %q", cfg.TraceLevel)
	}
	network, err := NewRingNetwork(cfg.Network.Topology, cfg.Network.Slices)
	if err != nil {
		return nil, fmt.Errorf("building ring: %w", err)
	}
	if registry == nil {
		registry = NewMapRegistry()
	}
	arb := cfg.Network.Arbitration
	s := &Simulator{
		Horizon:             cfg.Horizon,
		Network:             network,
		Engine:              NewRoutingDecisionEngine(network, cfg.Network.Routing),
		Arbitrator:          NewSliceArbitrator(network, meters, arb),
		Registry:            registry,
		Metrics:             NewMetrics(),
		events:              make(EventQueue, 0),
		arbitrationInterval: Ticks(arb.Interval),
		sampleInterval:      Ticks(arb.SampleInterval),
	}
	if s.sampleInterval > 0 {
		s.Sampler = NewUsageSampler(network, s.Engine, registry, arb.EWMAAlpha)
	}
	if cfg.TraceLevel != "" && cfg.TraceLevel != trace.TraceLevelNone {
		s.Trace = trace.NewSimulationTrace(trace.TraceConfig{Level: cfg.TraceLevel})
	}
	logrus.Infof("ring of %d switches, %d links, link capacity %s, %d slices",
		network.Ring().Size(), len(network.Links()), cfg.Network.Topology.LinkCapacity, len(network.Slices()))
	return s, nil
}

// Schedule pushes an event into the simulator's event queue.
func (sim *Simulator) Schedule(ev Event) {
	heap.Push(&sim.events, eventEntry{event: ev, seqID: sim.seq})
	sim.seq++
}

// InjectBearer schedules the arrival of a bearer. Its release is scheduled once
// admitted, HoldingTime ticks later.
func (sim *Simulator) InjectBearer(info *BearerInfo) {
	sim.pendingBearerEvents++
	sim.Schedule(&BearerRequestEvent{time: info.ArrivalTime, bearer: info})
}

// ReleaseBearerAt schedules an explicit release, e.g. for bearers held until detach.
func (sim *Simulator) ReleaseBearerAt(id BearerID, at int64) {
	sim.pendingBearerEvents++
	sim.Schedule(&BearerReleaseEvent{time: at, bearer: id})
}

// Run installs the slice meters, starts the periodic events and processes the
// queue until it drains or the horizon is passed.
func (sim *Simulator) Run() {
	if !sim.started {
		sim.started = true
		sim.recordMeters(sim.Arbitrator.InstallMeters())
		if sim.Sampler != nil {
			sim.Schedule(&UsageSampleEvent{time: sim.sampleInterval})
		}
		if sim.arbitrationInterval > 0 {
			sim.Schedule(&ArbitrationTickEvent{time: sim.arbitrationInterval})
		}
	}
	for len(sim.events) > 0 {
		entry := heap.Pop(&sim.events).(eventEntry)
		ev := entry.event
		if ev.Timestamp() > sim.Horizon {
			sim.Clock = sim.Horizon
			break
		}
		sim.Clock = ev.Timestamp()
		ev.Execute(sim)
	}
	sim.Metrics.SimEndedTime = min(sim.Clock, sim.Horizon)
	sim.Metrics.CollectLinks(sim.Network)
	logrus.Infof("[tick %07d] Simulation ended", sim.Clock)
}

// busy reports whether bearer events are still queued or bearers are still held.
// Held bearers keep the periodic events running up to the horizon.
func (sim *Simulator) busy() bool {
	return sim.pendingBearerEvents > 0 || sim.Registry.Len() > 0
}

func (sim *Simulator) request(info *BearerInfo) {
	if err := sim.Registry.Put(info); err != nil {
		logrus.Warnf("bearer %d not registered: %v", info.ID, err)
		return
	}
	d := sim.Engine.Request(info.BearerRequest)
	sim.Metrics.RecordDecision(info.Slice, info.GBR, d)
	if sim.Trace != nil {
		rec, _ := sim.Engine.Record(info.ID)
		sim.Trace.RecordAdmission(trace.AdmissionRecord{
			BearerID:    uint64(info.ID),
			Clock:       sim.Clock,
			Slice:       int(info.Slice),
			GBR:         info.GBR,
			Admitted:    d.Accepted,
			Reason:      string(d.Reason),
			Paths:       [2]string{rec.Paths[InterfaceA].String(), rec.Paths[InterfaceB].String()},
			Alternative: d.Alternative,
		})
	}
	if !d.Accepted {
		sim.Engine.Release(info.ID)
		sim.Registry.Delete(info.ID)
		return
	}
	if info.HoldingTime > 0 {
		sim.ReleaseBearerAt(info.ID, sim.Clock+info.HoldingTime)
	}
}

func (sim *Simulator) release(id BearerID) {
	info, ok := sim.Registry.Get(id)
	if sim.Engine.Release(id) && ok {
		sim.Metrics.RecordRelease(info.Slice)
	}
	sim.Registry.Delete(id)
}

func (sim *Simulator) arbitrate() {
	report := sim.Arbitrator.Tick()
	sim.Metrics.RecordTick(report)
	if sim.Trace != nil {
		for _, a := range report.Adjustments {
			sim.Trace.RecordArbitration(trace.ArbitrationRecord{
				Clock:     sim.Clock,
				Link:      int(a.Link),
				Direction: a.Dir.String(),
				Slice:     int(a.Slice),
				Delta:     a.Delta,
			})
		}
	}
	sim.recordMeters(report.MeterUpdates)
}

func (sim *Simulator) recordMeters(updates []MeterUpdate) {
	sim.Metrics.MeterUpdates += len(updates)
	if sim.Trace == nil {
		return
	}
	for _, u := range updates {
		sim.Trace.RecordMeter(trace.MeterRecord{
			Clock:     sim.Clock,
			Link:      int(u.Link),
			Direction: u.Dir.String(),
			Slice:     int(u.Slice),
			Kbps:      u.BitRate / 1000,
		})
	}
}

// Package controlplane runs the ring resource manager against wall-clock time.
// Bearer requests arrive from callers concurrently; the controller serializes
// them with usage sampling and arbitration on a single goroutine, so the
// ledgers are never observed mid-transaction.
package controlplane

import (
	"context"
	"errors"
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ring-sim/ring-sim/sim"
)

// ErrStopped is returned by calls made after Run has returned.
var ErrStopped = errors.New("controller stopped")

// Config configures a Controller.
type Config struct {
	Network sim.NetworkConfig
	// Clock drives the sampling and arbitration tickers. Nil means wall clock.
	Clock clock.Clock
	// Registerer receives the controller's metrics. Nil disables registration.
	Registerer prometheus.Registerer
	// Registry stores bearer metadata. Nil means an in-process map.
	Registry sim.BearerRegistry
	// Meters programs the switches. May be nil.
	Meters sim.MeterProgrammer
}

type op struct {
	fn   func()
	done chan struct{}
}

// Controller is the live resource manager of one ring.
type Controller struct {
	clock      clock.Clock
	network    *sim.RingNetwork
	engine     *sim.RoutingDecisionEngine
	arbitrator *sim.SliceArbitrator
	sampler    *sim.UsageSampler
	registry   sim.BearerRegistry
	metrics    *metrics
	arb        sim.ArbitrationConfig

	ops     chan op
	stopped chan struct{}
}

// New validates cfg and builds the controller. Call Run to start serving.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Network.Validate(); err != nil {
		return nil, fmt.Errorf("invalid network config: %w", err)
	}
	network, err := sim.NewRingNetwork(cfg.Network.Topology, cfg.Network.Slices)
	if err != nil {
		return nil, fmt.Errorf("building ring: %w", err)
	}
	c := &Controller{
		clock:    cfg.Clock,
		network:  network,
		engine:   sim.NewRoutingDecisionEngine(network, cfg.Network.Routing),
		registry: cfg.Registry,
		metrics:  newMetrics(),
		arb:      cfg.Network.Arbitration,
		ops:      make(chan op),
		stopped:  make(chan struct{}),
	}
	if c.clock == nil {
		c.clock = clock.NewClock()
	}
	if c.registry == nil {
		c.registry = sim.NewMapRegistry()
	}
	c.arbitrator = sim.NewSliceArbitrator(network, cfg.Meters, c.arb)
	if c.arb.SampleInterval > 0 {
		c.sampler = sim.NewUsageSampler(network, c.engine, c.registry, c.arb.EWMAAlpha)
	}
	if cfg.Registerer != nil {
		if err := c.metrics.register(cfg.Registerer); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
	}
	return c, nil
}

// Run installs the slice meters and serves requests until ctx is done.
// It returns ctx.Err().
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.stopped)

	c.metrics.meterUpdates.Add(float64(len(c.arbitrator.InstallMeters())))

	var sampleC, arbitrateC <-chan time.Time
	if c.sampler != nil {
		t := c.clock.NewTicker(c.arb.SampleInterval)
		defer t.Stop()
		sampleC = t.C()
	}
	if c.arb.Interval > 0 {
		t := c.clock.NewTicker(c.arb.Interval)
		defer t.Stop()
		arbitrateC = t.C()
	}
	logrus.Infof("control plane running: %d switches, arbitration every %v", c.network.Ring().Size(), c.arb.Interval)

	for {
		// Pending ticks win over queued requests.
		select {
		case <-sampleC:
			c.sample()
			continue
		case <-arbitrateC:
			c.arbitrate()
			continue
		default:
		}

		select {
		case <-ctx.Done():
			logrus.Infof("control plane stopping: %v", ctx.Err())
			return ctx.Err()
		case <-sampleC:
			c.sample()
		case <-arbitrateC:
			c.arbitrate()
		case o := <-c.ops:
			o.fn()
			close(o.done)
		}
	}
}

// do runs fn on the controller goroutine and waits for it to finish.
func (c *Controller) do(ctx context.Context, fn func()) error {
	o := op{fn: fn, done: make(chan struct{})}
	select {
	case c.ops <- o:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrStopped
	}
	<-o.done
	return nil
}

// Request admits or blocks a bearer. A request for a held bearer is a handover;
// blocked bearers are forgotten.
func (c *Controller) Request(ctx context.Context, info *sim.BearerInfo) (sim.Decision, error) {
	var d sim.Decision
	var putErr error
	err := c.do(ctx, func() {
		if putErr = c.registry.Put(info); putErr != nil {
			return
		}
		if rec, ok := c.engine.Record(info.ID); ok && rec.Admitted() {
			c.metrics.dropActive(rec.Slice)
		}
		d = c.engine.Request(info.BearerRequest)
		c.metrics.recordDecision(info.Slice, d)
		if !d.Accepted {
			c.engine.Release(info.ID)
			c.registry.Delete(info.ID)
			logrus.Debugf("bearer %d blocked: %s", info.ID, d.Reason)
		}
	})
	if err != nil {
		return sim.Decision{}, err
	}
	if putErr != nil {
		return sim.Decision{}, fmt.Errorf("registering bearer %d: %w", info.ID, putErr)
	}
	return d, nil
}

// Release frees the bearer's reservation. It reports whether the bearer was held.
func (c *Controller) Release(ctx context.Context, id sim.BearerID) (bool, error) {
	var released bool
	err := c.do(ctx, func() {
		info, ok := c.registry.Get(id)
		released = c.engine.Release(id) && ok
		if released {
			c.metrics.recordRelease(info.Slice)
		}
		c.registry.Delete(id)
	})
	return released, err
}

// Links returns a snapshot of every ledger.
func (c *Controller) Links(ctx context.Context) ([]sim.LinkUsage, error) {
	m := sim.NewMetrics()
	err := c.do(ctx, func() { m.CollectLinks(c.network) })
	return m.Links, err
}

// Arbitrate runs one arbitration round immediately.
func (c *Controller) Arbitrate(ctx context.Context) (sim.TickReport, error) {
	var r sim.TickReport
	err := c.do(ctx, func() { r = c.arbitrate() })
	return r, err
}

func (c *Controller) sample() {
	c.sampler.Sample()
	c.metrics.usageSamples.Inc()
}

func (c *Controller) arbitrate() sim.TickReport {
	r := c.arbitrator.Tick()
	c.metrics.recordTick(c.network, r)
	if r.Skipped > 0 {
		logrus.Warnf("arbitration skipped %d adjustments", r.Skipped)
	}
	return r
}

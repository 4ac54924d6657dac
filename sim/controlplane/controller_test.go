package controlplane

import (
	"context"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ring-sim/ring-sim/sim"
	"github.com/ring-sim/ring-sim/sim/metering"
)

func bearer(id sim.BearerID, src, dst sim.SwitchIndex, rate sim.BitRate) *sim.BearerInfo {
	return &sim.BearerInfo{
		BearerRequest: sim.BearerRequest{
			ID:        id,
			Slice:     1,
			GBR:       true,
			Downlink:  int64(rate),
			Endpoints: [2]sim.Endpoints{{Src: src, Dst: dst}, {Src: dst, Dst: dst}},
		},
		Activity: 1,
	}
}

// start runs c until the test ends and returns a channel carrying Run's result.
func start(t *testing.T, c *Controller) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()
	return cancel, errc
}

func TestController_RequestRelease(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	// GIVEN a running controller on the default 100 Mbps ring
	reg := prometheus.NewRegistry()
	c, err := New(Config{Network: sim.DefaultNetworkConfig(), Registerer: reg})
	require.NoError(t, err)
	cancel, errc := start(t, c)
	ctx := context.Background()

	// WHEN two 60 Mbps bearers compete for the same path
	d1, err := c.Request(ctx, bearer(1, 0, 3, 60*sim.Mbps))
	require.NoError(t, err)
	d2, err := c.Request(ctx, bearer(2, 0, 3, 60*sim.Mbps))
	require.NoError(t, err)

	// THEN the first is reserved and the second blocked
	assert.True(t, d1.Accepted)
	assert.True(t, d1.Reserved)
	assert.False(t, d2.Accepted)
	assert.Equal(t, sim.BlockInsufficientLinkBandwidth, d2.Reason)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.requests.WithLabelValues("1", "blocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.activeBearers.WithLabelValues("1")))

	links, err := c.Links(ctx)
	require.NoError(t, err)
	assert.Len(t, links, 12)

	// WHEN the first is released
	released, err := c.Release(ctx, 1)
	require.NoError(t, err)
	assert.True(t, released)
	released, err = c.Release(ctx, 2)
	require.NoError(t, err)
	assert.False(t, released)

	// THEN the link is free again
	links, err = c.Links(ctx)
	require.NoError(t, err)
	for _, l := range links {
		assert.Zero(t, l.Committed, "link %d %s", l.Link, l.Dir)
	}
	assert.Equal(t, 0.0, testutil.ToFloat64(c.metrics.activeBearers.WithLabelValues("1")))

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestController_CallsAfterStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c, err := New(Config{Network: sim.DefaultNetworkConfig()})
	require.NoError(t, err)
	cancel, errc := start(t, c)
	cancel()
	<-errc

	_, err = c.Request(context.Background(), bearer(1, 0, 1, sim.Mbps))
	assert.ErrorIs(t, err, ErrStopped)
	_, err = c.Release(context.Background(), 1)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestController_CallerContextCancelled(t *testing.T) {
	// GIVEN a controller that was never started
	c, err := New(Config{Network: sim.DefaultNetworkConfig()})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// THEN calls give up with the caller's error
	_, err = c.Request(ctx, bearer(1, 0, 1, sim.Mbps))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestController_ArbitratesOnClockTicks(t *testing.T) {
	// GIVEN a fake clock, arbitration every second and a recorder for the meters
	fc := fakeclock.NewFakeClock(time.Now())
	cfg := sim.DefaultNetworkConfig()
	cfg.Arbitration.Interval = time.Second
	cfg.Arbitration.SampleInterval = time.Second
	rec := metering.NewRecorder()
	c, err := New(Config{Network: cfg, Clock: fc, Meters: rec, Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	cancel, errc := start(t, c)
	defer func() {
		cancel()
		<-errc
	}()

	_, err = c.Request(context.Background(), bearer(1, 0, 2, 10*sim.Mbps))
	require.NoError(t, err)
	assert.Equal(t, 12.0, testutil.ToFloat64(c.metrics.meterUpdates))

	// WHEN one interval elapses
	require.Eventually(t, func() bool { return fc.WatcherCount() == 2 }, time.Second, time.Millisecond)
	fc.Increment(time.Second)

	// THEN a round ran and lowered the meters on the reserved hops
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(c.metrics.arbitrationTicks) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 14.0, testutil.ToFloat64(c.metrics.meterUpdates))
	kbps, ok := rec.Rate(0, sim.DirClockwise, 1)
	require.True(t, ok)
	assert.Equal(t, int64(90_000), kbps)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(c.metrics.usageSamples) == 1
	}, time.Second, time.Millisecond)
}

func TestController_ArbitrateOnDemand(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := sim.DefaultNetworkConfig()
	cfg.Arbitration.Interval = 0
	c, err := New(Config{Network: cfg})
	require.NoError(t, err)
	cancel, errc := start(t, c)

	_, err = c.Request(context.Background(), bearer(1, 0, 1, 50*sim.Mbps))
	require.NoError(t, err)
	r, err := c.Arbitrate(context.Background())
	require.NoError(t, err)

	assert.Len(t, r.MeterUpdates, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.arbitrationTicks))

	cancel()
	<-errc
}

func TestNew_Errors(t *testing.T) {
	cfg := sim.DefaultNetworkConfig()
	cfg.Slices = nil
	_, err := New(Config{Network: cfg})
	assert.ErrorContains(t, err, "invalid network config")

	// duplicate registration on the same registry
	reg := prometheus.NewRegistry()
	_, err = New(Config{Network: sim.DefaultNetworkConfig(), Registerer: reg})
	require.NoError(t, err)
	_, err = New(Config{Network: sim.DefaultNetworkConfig(), Registerer: reg})
	assert.ErrorContains(t, err, "registering metrics")
}

func TestController_Handover_KeepsActiveGaugeInStep(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	// GIVEN a running controller holding one 20 Mbps bearer
	c, err := New(Config{Network: sim.DefaultNetworkConfig(), Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	cancel, errc := start(t, c)
	ctx := context.Background()
	active := func() float64 { return testutil.ToFloat64(c.metrics.activeBearers.WithLabelValues("1")) }

	d, err := c.Request(ctx, bearer(1, 0, 2, 20*sim.Mbps))
	require.NoError(t, err)
	require.True(t, d.Accepted)
	assert.Equal(t, 1.0, active())

	// WHEN the bearer hands over to another switch
	d, err = c.Request(ctx, bearer(1, 0, 3, 20*sim.Mbps))
	require.NoError(t, err)
	require.True(t, d.Accepted)

	// THEN it is still counted once
	assert.Equal(t, 1.0, active())

	// WHEN a re-request asks for more than any link carries
	d, err = c.Request(ctx, bearer(1, 0, 3, 200*sim.Mbps))
	require.NoError(t, err)
	require.False(t, d.Accepted)

	// THEN the bearer is gone and the gauge follows
	assert.Equal(t, 0.0, active())
	released, err := c.Release(ctx, 1)
	require.NoError(t, err)
	assert.False(t, released)
	assert.Equal(t, 0.0, active())

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

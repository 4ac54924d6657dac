package controlplane

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ring-sim/ring-sim/sim"
)

func TestMetrics_RecordTick_TracksExtraPerLink(t *testing.T) {
	// GIVEN a ring where slice 1 holds 8 Mbps extra on link 2 clockwise
	net, err := sim.NewRingNetwork(sim.TopologyConfig{Switches: 4, LinkCapacity: 100 * sim.Mbps},
		[]sim.Slice{{ID: 1, Sharing: true, QuotaPercent: 50}, {ID: 2, Sharing: true, QuotaPercent: 50}})
	require.NoError(t, err)
	require.True(t, net.Ledger(2, sim.DirClockwise).UpdateExtra(1, int64(8*sim.Mbps)))
	m := newMetrics()

	// WHEN a tick reporting that grant and one reclaim is recorded
	m.recordTick(net, sim.TickReport{
		Adjustments: []sim.ExtraAdjustment{
			{Link: 2, Dir: sim.DirClockwise, Slice: 1, Delta: int64(8 * sim.Mbps)},
			{Link: 0, Dir: sim.DirCounterClockwise, Slice: 2, Delta: -int64(4 * sim.Mbps)},
		},
		MeterUpdates: make([]sim.MeterUpdate, 3),
	})

	// THEN the gauges mirror the ledgers and the counters split by kind
	assert.Equal(t, float64(8*sim.Mbps), testutil.ToFloat64(m.extra.WithLabelValues("2", "cw", "1")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.extra.WithLabelValues("0", "ccw", "2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.extraAdjustments.WithLabelValues("grant")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.extraAdjustments.WithLabelValues("reclaim")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.meterUpdates))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.arbitrationTicks))
}

func TestMetrics_DecisionsAndReleases(t *testing.T) {
	m := newMetrics()
	m.recordDecision(3, sim.Decision{Accepted: true})
	m.recordDecision(3, sim.Decision{Accepted: true})
	m.recordDecision(3, sim.Decision{Reason: sim.BlockInsufficientLinkBandwidth})
	m.recordRelease(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("3", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("3", "blocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.releases.WithLabelValues("3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeBearers.WithLabelValues("3")))
}

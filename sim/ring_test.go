package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_ShortestPath_HopCountProperties(t *testing.T) {
	for n := 3; n <= 9; n++ {
		ring := NewRing(n)
		for src := 0; src < n; src++ {
			for dst := 0; dst < n; dst++ {
				s, d := SwitchIndex(src), SwitchIndex(dst)
				path := ring.ShortestPath(s, d)

				// Shortest path never exceeds half the ring
				assert.LessOrEqual(t, ring.HopCount(s, d, path), n/2, "n=%d %d->%d", n, src, dst)

				if src == dst {
					assert.Equal(t, PathLocal, path)
					continue
				}
				// Both rotations together cover the whole ring
				assert.Equal(t, n, ring.HopCount(s, d, PathClockwise)+ring.HopCount(s, d, PathCounterClockwise),
					"n=%d %d->%d", n, src, dst)
			}
		}
	}
}

func TestRing_ShortestPath_TieFavorsClockwise(t *testing.T) {
	// GIVEN an even ring with dst exactly opposite src
	ring := NewRing(6)

	// THEN both directions are 3 hops and clockwise wins
	assert.Equal(t, PathClockwise, ring.ShortestPath(0, 3))
	assert.Equal(t, PathClockwise, ring.ShortestPath(4, 1))
	assert.Equal(t, PathCounterClockwise, ring.ShortestPath(0, 4))
}

func TestRing_NextIndex_WrapsAround(t *testing.T) {
	ring := NewRing(5)
	assert.Equal(t, SwitchIndex(0), ring.NextIndex(4, PathClockwise))
	assert.Equal(t, SwitchIndex(4), ring.NextIndex(0, PathCounterClockwise))
	assert.Equal(t, SwitchIndex(3), ring.NextIndex(2, PathClockwise))
}

func TestRing_Walk_VisitsLinksInTravelOrder(t *testing.T) {
	ring := NewRing(6)

	type hop struct {
		link LinkID
		dir  Direction
	}
	tests := []struct {
		name     string
		src, dst SwitchIndex
		path     RoutingPath
		want     []hop
	}{
		{"clockwise", 0, 3, PathClockwise, []hop{{0, DirClockwise}, {1, DirClockwise}, {2, DirClockwise}}},
		{"counterclockwise", 0, 3, PathCounterClockwise, []hop{{5, DirCounterClockwise}, {4, DirCounterClockwise}, {3, DirCounterClockwise}}},
		{"clockwise wrap", 5, 1, PathClockwise, []hop{{5, DirClockwise}, {0, DirClockwise}}},
		{"local", 2, 2, PathLocal, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got []hop
			ring.Walk(tc.src, tc.dst, tc.path, func(l LinkID, d Direction) { got = append(got, hop{l, d}) })
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRing_OutOfRangeIndex_Panics(t *testing.T) {
	ring := NewRing(4)
	assert.PanicsWithValue(t, "Ring: switch index 4 out of range [0,4)", func() {
		ring.ShortestPath(0, 4)
	})
	assert.PanicsWithValue(t, "Ring: switch index -1 out of range [0,4)", func() {
		ring.HopCount(-1, 0, PathClockwise)
	})
	assert.Panics(t, func() { ring.NextIndex(1, PathLocal) })
	assert.Panics(t, func() { ring.Walk(0, 1, PathLocal, func(LinkID, Direction) {}) })
}

func TestNewRing_TooSmall_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "Ring: size must be >= 3, got 2", func() { NewRing(2) })
}

func TestRoutingPath_Invert(t *testing.T) {
	assert.Equal(t, PathCounterClockwise, PathClockwise.Invert())
	assert.Equal(t, PathClockwise, PathCounterClockwise.Invert())
	assert.Equal(t, PathLocal, PathLocal.Invert())
}

func TestNewRingNetwork_BuildsLinksAndLedgers(t *testing.T) {
	// GIVEN a 4-switch ring with two slices
	net, err := NewRingNetwork(TopologyConfig{Switches: 4, LinkCapacity: 100 * Mbps, GuardBand: 5 * Mbps},
		[]Slice{{ID: 1, QuotaPercent: 60}, {ID: 2, QuotaPercent: 30}})
	require.NoError(t, err)

	// THEN every link connects neighbors and both ledgers carry the quotas
	require.Len(t, net.Links(), 4)
	last := net.Links()[3]
	assert.Equal(t, SwitchIndex(3), last.A)
	assert.Equal(t, SwitchIndex(0), last.B)
	for _, dir := range Directions {
		ledger := net.Ledger(2, dir)
		assert.Equal(t, int64(60*Mbps), ledger.Quota(1))
		assert.Equal(t, int64(30*Mbps), ledger.Quota(2))
		assert.Equal(t, int64(10*Mbps), ledger.SpareBitRate())
		assert.Equal(t, int64(5*Mbps), ledger.GuardBand())
	}
}

func TestNewRingNetwork_QuotaOverCapacity_Error(t *testing.T) {
	_, err := NewRingNetwork(TopologyConfig{Switches: 3, LinkCapacity: 100},
		[]Slice{{ID: 1, QuotaPercent: 70}, {ID: 2, QuotaPercent: 40}})
	assert.ErrorContains(t, err, "exceeds link capacity")
}

func TestNewRingNetwork_DuplicateSlice_Error(t *testing.T) {
	_, err := NewRingNetwork(TopologyConfig{Switches: 3, LinkCapacity: 100},
		[]Slice{{ID: 1, QuotaPercent: 10}, {ID: 1, QuotaPercent: 10}})
	assert.ErrorContains(t, err, "duplicate slice id 1")
}

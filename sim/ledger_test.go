package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T, capacity, guard int64, quotas map[SliceID]int64) *LinkLedger {
	t.Helper()
	l, err := NewLinkLedger(capacity, guard, quotas)
	require.NoError(t, err)
	return l
}

// assertLedgerInvariants checks committed >= 0 and committed+extra <= capacity for every slice.
func assertLedgerInvariants(t *testing.T, l *LinkLedger) {
	t.Helper()
	for _, s := range l.Slices() {
		assert.GreaterOrEqual(t, l.Committed(s), int64(0), "slice %d committed", s)
		assert.GreaterOrEqual(t, l.Extra(s), int64(0), "slice %d extra", s)
		assert.LessOrEqual(t, l.Committed(s)+l.Extra(s), l.Capacity(), "slice %d committed+extra", s)
	}
}

func TestNewLinkLedger_InvalidConfig(t *testing.T) {
	tests := []struct {
		name     string
		capacity int64
		guard    int64
		quotas   map[SliceID]int64
		wantErr  string
	}{
		{"zero capacity", 0, 0, nil, "link capacity must be > 0"},
		{"guard equals capacity", 100, 100, nil, "guard band must be in"},
		{"negative quota", 100, 0, map[SliceID]int64{1: -1}, "quota must be non-negative"},
		{"quotas over capacity", 100, 0, map[SliceID]int64{1: 60, 2: 41}, "exceeds link capacity"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLinkLedger(tc.capacity, tc.guard, tc.quotas)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLinkLedger_ReserveRelease_RoundTrip(t *testing.T) {
	// GIVEN a ledger shared by three slices
	l := newTestLedger(t, 1000, 0, map[SliceID]int64{1: 400, 2: 300, 3: 300})
	rng := rand.New(rand.NewSource(3))

	// WHEN slices 2 and 3 reserve and release independently around a reserve/release of slice 1
	before := l.Committed(1)
	held := map[SliceID]int64{}
	for i := 0; i < 50; i++ {
		s := SliceID(2 + rng.Intn(2))
		amount := int64(rng.Intn(60))
		if rng.Intn(2) == 0 && l.Reserve(s, amount) {
			held[s] += amount
		} else if held[s] > 0 {
			l.Release(s, held[s])
			held[s] = 0
		}
		if i == 10 {
			require.True(t, l.Reserve(1, 123))
		}
		if i == 40 {
			l.Release(1, 123)
		}
		assertLedgerInvariants(t, l)
	}

	// THEN slice 1 is back where it started
	assert.Equal(t, before, l.Committed(1))
}

func TestLinkLedger_ReserveThenRelease_AvailableUnchanged(t *testing.T) {
	// GIVEN a ledger with one slice and a prior reservation
	l := newTestLedger(t, 100*int64(Mbps), 0, map[SliceID]int64{1: 100 * int64(Mbps)})
	require.True(t, l.Reserve(1, 10*int64(Mbps)))
	before := l.AvailableBitRate(1, 1.0)

	// WHEN the same amount is reserved and immediately released
	require.True(t, l.Reserve(1, 25*int64(Mbps)))
	l.Release(1, 25*int64(Mbps))

	// THEN availability is unchanged
	assert.Equal(t, before, l.AvailableBitRate(1, 1.0))
}

func TestLinkLedger_AvailableBitRate_BoundedByQuotaAndCapacity(t *testing.T) {
	l := newTestLedger(t, 100, 0, map[SliceID]int64{1: 60, 2: 40})

	// Own quota bounds the slice
	assert.Equal(t, int64(60), l.AvailableBitRate(1, 1.0))

	// Extra lent to another slice reduces what is left on the link
	require.True(t, l.Reserve(2, 40))
	require.True(t, l.UpdateExtra(2, 50))
	assert.Equal(t, int64(10), l.AvailableBitRate(1, 1.0))

	// Discount shrinks the computed value only
	assert.Equal(t, int64(5), l.AvailableBitRate(1, 0.5))
	assert.Equal(t, int64(10), l.AvailableBitRate(1, 1.0))
}

func TestLinkLedger_Reserve_InsufficientLeavesLedgerUntouched(t *testing.T) {
	l := newTestLedger(t, 100, 0, map[SliceID]int64{1: 50})
	require.True(t, l.Reserve(1, 30))

	assert.False(t, l.Reserve(1, 21))
	assert.Equal(t, int64(30), l.Committed(1))
}

func TestLinkLedger_Release_BelowZero_Panics(t *testing.T) {
	l := newTestLedger(t, 100, 0, map[SliceID]int64{1: 50})
	require.True(t, l.Reserve(1, 10))

	assert.PanicsWithValue(t, "LinkLedger: release of 11 exceeds committed 10 for slice 1", func() {
		l.Release(1, 11)
	})
}

func TestLinkLedger_UnknownSlice_Panics(t *testing.T) {
	l := newTestLedger(t, 100, 0, map[SliceID]int64{1: 50})
	assert.PanicsWithValue(t, "LinkLedger: unknown slice 9", func() { l.Reserve(9, 1) })
}

func TestLinkLedger_InvalidDiscount_Panics(t *testing.T) {
	l := newTestLedger(t, 100, 0, map[SliceID]int64{1: 50})
	assert.Panics(t, func() { l.AvailableBitRate(1, 0) })
	assert.Panics(t, func() { l.AvailableBitRate(1, 1.5) })
}

func TestLinkLedger_UpdateExtra_Bounds(t *testing.T) {
	// GIVEN capacity 100, guard 10, two slices with quota 50 each
	l := newTestLedger(t, 100, 10, map[SliceID]int64{1: 50, 2: 50})

	// Negative extra is refused
	assert.False(t, l.UpdateExtra(1, -1))

	// Growth up to capacity minus guard is allowed
	assert.True(t, l.UpdateExtra(1, 60))
	assert.True(t, l.UpdateExtra(2, 30))

	// One more bit would enter the guard band
	assert.False(t, l.UpdateExtra(2, 1))

	// Shrinking is always fine while extra stays >= 0
	assert.True(t, l.UpdateExtra(1, -60))
	assert.Equal(t, int64(0), l.Extra(1))
	assertLedgerInvariants(t, l)
}

func TestLinkLedger_UpdateUsage_EWMA(t *testing.T) {
	l := newTestLedger(t, 100, 0, map[SliceID]int64{1: 50})

	l.UpdateUsage(1, 40, 0.5)
	assert.InDelta(t, 20.0, l.Usage(1), 1e-9)
	l.UpdateUsage(1, 40, 0.5)
	assert.InDelta(t, 30.0, l.Usage(1), 1e-9)

	// Idle = quota + extra - usage
	assert.Equal(t, int64(20), l.IdleBitRate(1))
	assert.Panics(t, func() { l.UpdateUsage(1, 1, 0) })
}

func TestLinkLedger_UnreservedBitRate(t *testing.T) {
	l := newTestLedger(t, 100, 0, map[SliceID]int64{1: 40, 2: 20})

	// Unused quota plus extra
	require.True(t, l.Reserve(1, 15))
	require.True(t, l.UpdateExtra(1, 10))
	assert.Equal(t, int64(35), l.UnreservedBitRate(1))

	// Nothing left once committed covers quota and extra
	require.True(t, l.Reserve(2, 20))
	assert.Equal(t, int64(0), l.UnreservedBitRate(2))
}

func TestLinkLedger_UnreservedBitRate_OveruseCountedOnce(t *testing.T) {
	// GIVEN a slice whose reservations exceed its quota by 10
	l := newTestLedger(t, 100, 0, map[SliceID]int64{1: 40, 2: 20})
	require.True(t, l.UpdateExtra(1, 30))
	l.account(1).committed = 50

	// WHEN the unreserved rate is computed
	got := l.UnreservedBitRate(1)

	// THEN the overuse is taken from the extra exactly once
	assert.Equal(t, int64(20), got)

	// AND the result is floored at zero when overuse exceeds extra
	l.account(1).committed = 80
	assert.Equal(t, int64(0), l.UnreservedBitRate(1))
}

func TestLinkLedger_Slices_ReturnsCopy(t *testing.T) {
	// GIVEN a ledger with three slices
	l := newTestLedger(t, 100, 0, map[SliceID]int64{3: 10, 1: 10, 2: 10})

	// WHEN a caller rewrites the returned slice IDs
	ids := l.Slices()
	ids[0], ids[2] = ids[2], ids[0]

	// THEN the ledger still reports ascending order
	assert.Equal(t, []SliceID{1, 2, 3}, l.Slices())
}

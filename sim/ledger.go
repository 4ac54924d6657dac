package sim

import (
	"fmt"
	"sort"
)

// sliceAccount is the per-slice bookkeeping of one link direction.
type sliceAccount struct {
	quota     int64   // fixed share of capacity
	committed int64   // reserved by admitted GBR bearers
	extra     int64   // borrowed on top of quota, granted by the arbitrator
	usage     float64 // EWMA of carried bit rate
	meter     int64   // rate currently programmed in the slice meter
}

// LinkLedger tracks bandwidth for one direction of one link.
// All bit rates are in bit/s.
//
// Invariants: committed[s] >= 0, committed[s]+extra[s] <= capacity, Σ quota <= capacity.
type LinkLedger struct {
	capacity int64
	guard    int64
	accounts map[SliceID]*sliceAccount
	order    []SliceID // ascending slice IDs
}

// NewLinkLedger creates a ledger for a link direction with the given per-slice quotas.
// Returns an error when the configuration cannot satisfy the ledger invariants.
func NewLinkLedger(capacity, guard int64, quotas map[SliceID]int64) (*LinkLedger, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("link capacity must be > 0, got %d", capacity)
	}
	if guard < 0 || guard >= capacity {
		return nil, fmt.Errorf("guard band must be in [0,%d), got %d", capacity, guard)
	}
	l := &LinkLedger{
		capacity: capacity,
		guard:    guard,
		accounts: make(map[SliceID]*sliceAccount, len(quotas)),
	}
	var total int64
	for id, q := range quotas {
		if q < 0 {
			return nil, fmt.Errorf("slice %d quota must be non-negative, got %d", id, q)
		}
		total += q
		l.accounts[id] = &sliceAccount{quota: q}
		l.order = append(l.order, id)
	}
	if total > capacity {
		return nil, fmt.Errorf("sum of slice quotas %d exceeds link capacity %d", total, capacity)
	}
	sort.Slice(l.order, func(i, j int) bool { return l.order[i] < l.order[j] })
	return l, nil
}

func (l *LinkLedger) account(slice SliceID) *sliceAccount {
	acc, ok := l.accounts[slice]
	if !ok {
		panic(fmt.Sprintf("LinkLedger: unknown slice %d", slice))
	}
	return acc
}

// Capacity returns the link capacity.
func (l *LinkLedger) Capacity() int64 { return l.capacity }

// GuardBand returns the bandwidth withheld from extra allocation.
func (l *LinkLedger) GuardBand() int64 { return l.guard }

// Slices returns the slice IDs known to this ledger in ascending order.
func (l *LinkLedger) Slices() []SliceID { return append([]SliceID(nil), l.order...) }

// Quota returns the fixed quota of slice.
func (l *LinkLedger) Quota(slice SliceID) int64 { return l.account(slice).quota }

// Committed returns the bit rate reserved by slice.
func (l *LinkLedger) Committed(slice SliceID) int64 { return l.account(slice).committed }

// Extra returns the extra bit rate currently lent to slice.
func (l *LinkLedger) Extra(slice SliceID) int64 { return l.account(slice).extra }

// Usage returns the smoothed usage estimate of slice.
func (l *LinkLedger) Usage(slice SliceID) float64 { return l.account(slice).usage }

// TotalCommitted returns Σ committed over all slices.
func (l *LinkLedger) TotalCommitted() int64 {
	var sum int64
	for _, acc := range l.accounts {
		sum += acc.committed
	}
	return sum
}

// TotalExtra returns Σ extra over all slices.
func (l *LinkLedger) TotalExtra() int64 {
	var sum int64
	for _, acc := range l.accounts {
		sum += acc.extra
	}
	return sum
}

// SpareBitRate returns the capacity not covered by any slice quota.
func (l *LinkLedger) SpareBitRate() int64 {
	var sum int64
	for _, acc := range l.accounts {
		sum += acc.quota
	}
	return l.capacity - sum
}

// AvailableBitRate returns the bit rate slice could still reserve on this link direction:
// capacity minus everything committed or lent out, further bounded by what is left of
// the slice's own quota. discount in (0,1] scales the result for this evaluation only.
func (l *LinkLedger) AvailableBitRate(slice SliceID, discount float64) int64 {
	if discount <= 0 || discount > 1 {
		panic(fmt.Sprintf("LinkLedger: discount must be in (0,1], got %v", discount))
	}
	acc := l.account(slice)
	free := l.capacity - l.TotalCommitted() - l.TotalExtra()
	if own := acc.quota - acc.committed; own < free {
		free = own
	}
	if free <= 0 {
		return 0
	}
	if discount == 1 {
		return free
	}
	return int64(float64(free) * discount)
}

// Reserve commits bitRate for slice if it is available. Returns false and leaves the
// ledger untouched otherwise.
func (l *LinkLedger) Reserve(slice SliceID, bitRate int64) bool {
	if bitRate < 0 {
		panic(fmt.Sprintf("LinkLedger: negative reservation %d for slice %d", bitRate, slice))
	}
	if l.AvailableBitRate(slice, 1.0) < bitRate {
		return false
	}
	l.account(slice).committed += bitRate
	return true
}

// Release returns bitRate previously reserved by slice.
// Releasing more than is committed is a consistency violation and panics.
func (l *LinkLedger) Release(slice SliceID, bitRate int64) {
	if bitRate < 0 {
		panic(fmt.Sprintf("LinkLedger: negative release %d for slice %d", bitRate, slice))
	}
	acc := l.account(slice)
	if acc.committed < bitRate {
		panic(fmt.Sprintf("LinkLedger: release of %d exceeds committed %d for slice %d", bitRate, acc.committed, slice))
	}
	acc.committed -= bitRate
}

// UpdateExtra adds delta to the extra bit rate of slice. The update is rejected when
// extra would go negative, when committed+extra would exceed capacity, or when a
// positive delta would push Σ committed + Σ extra into the guard band.
func (l *LinkLedger) UpdateExtra(slice SliceID, delta int64) bool {
	acc := l.account(slice)
	next := acc.extra + delta
	if next < 0 {
		return false
	}
	if acc.committed+next > l.capacity {
		return false
	}
	if delta > 0 && l.TotalCommitted()+l.TotalExtra()+delta > l.capacity-l.guard {
		return false
	}
	acc.extra = next
	return true
}

// UpdateUsage folds an instantaneous usage sample into the slice EWMA.
// alpha in (0,1] is the weight of the new sample.
func (l *LinkLedger) UpdateUsage(slice SliceID, sample int64, alpha float64) {
	if alpha <= 0 || alpha > 1 {
		panic(fmt.Sprintf("LinkLedger: EWMA alpha must be in (0,1], got %v", alpha))
	}
	acc := l.account(slice)
	acc.usage = alpha*float64(sample) + (1-alpha)*acc.usage
}

// IdleBitRate returns how much of its quota plus extra slice is not using.
// Negative values mean the slice is using more than its allotment.
func (l *LinkLedger) IdleBitRate(slice SliceID) int64 {
	acc := l.account(slice)
	return acc.quota + acc.extra - int64(acc.usage)
}

// UnreservedBitRate returns the bandwidth slice is entitled to beyond its GBR
// reservations: unused quota plus extra, minus any reservation above quota.
// This is the rate its non-GBR meter should enforce.
func (l *LinkLedger) UnreservedBitRate(slice SliceID) int64 {
	acc := l.account(slice)
	overuse := max(0, acc.committed-acc.quota)
	return max(0, max(0, acc.quota-acc.committed)+acc.extra-overuse)
}

// MeterBitRate returns the rate last programmed for the slice meter.
func (l *LinkLedger) MeterBitRate(slice SliceID) int64 { return l.account(slice).meter }

// SetMeterBitRate records the rate programmed for the slice meter.
func (l *LinkLedger) SetMeterBitRate(slice SliceID, bitRate int64) {
	l.account(slice).meter = bitRate
}

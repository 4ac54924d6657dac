package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// MeterProgrammer receives rate-limiter configuration for one link direction and slice.
// Implementations must not block the caller.
type MeterProgrammer interface {
	SetMeterRate(link LinkID, dir Direction, slice SliceID, kbps int64)
}

// ExtraAdjustment is one step change of a slice's extra bit rate.
type ExtraAdjustment struct {
	Link  LinkID
	Dir   Direction
	Slice SliceID
	Delta int64
}

// MeterUpdate is one meter rate pushed to the MeterProgrammer.
type MeterUpdate struct {
	Link    LinkID
	Dir     Direction
	Slice   SliceID
	BitRate int64
}

// TickReport summarizes what one arbitration tick changed.
type TickReport struct {
	Adjustments  []ExtraAdjustment
	MeterUpdates []MeterUpdate
	Skipped      int // adjustments refused by the ledger
}

// SliceArbitrator periodically moves extra bandwidth between sharing-enabled slices,
// per link and direction, and keeps slice meters in line with what each slice is
// entitled to. It never blocks: refused adjustments are retried on later ticks.
type SliceArbitrator struct {
	store        LinkLedgerStore
	meters       MeterProgrammer
	extraStep    int64
	meterStep    int64
	spareSharing bool
	sharing      []Slice // increasing priority
	all          []Slice // increasing priority
}

// NewSliceArbitrator creates an arbitrator over store. Panics on a non-positive extra step.
func NewSliceArbitrator(store LinkLedgerStore, meters MeterProgrammer, cfg ArbitrationConfig) *SliceArbitrator {
	if cfg.ExtraStep <= 0 {
		panic(fmt.Sprintf("SliceArbitrator: extra step must be > 0, got %d", cfg.ExtraStep))
	}
	a := &SliceArbitrator{
		store:        store,
		meters:       meters,
		extraStep:    int64(cfg.ExtraStep),
		meterStep:    int64(cfg.MeterStep),
		spareSharing: cfg.SpareSharing,
		all:          byPriority(store.Slices()),
	}
	for _, s := range a.all {
		if s.Sharing {
			a.sharing = append(a.sharing, s)
		}
	}
	return a
}

// InstallMeters programs every slice meter on every link direction with the slice's
// current entitlement. Called once at startup.
func (a *SliceArbitrator) InstallMeters() []MeterUpdate {
	var updates []MeterUpdate
	for _, link := range a.store.Links() {
		for _, dir := range Directions {
			for _, s := range a.all {
				rate := link.Ledger(dir).UnreservedBitRate(s.ID)
				updates = append(updates, a.program(link, dir, s.ID, rate))
			}
		}
	}
	return updates
}

// Tick runs one arbitration round over every link and direction.
func (a *SliceArbitrator) Tick() TickReport {
	var report TickReport
	for _, link := range a.store.Links() {
		for _, dir := range Directions {
			if len(a.sharing) > 0 {
				a.adjustExtra(link, dir, &report)
			}
			a.syncMeters(link, dir, &report)
		}
	}
	return report
}

func (a *SliceArbitrator) adjustExtra(link *Link, dir Direction, report *TickReport) {
	ledger := link.Ledger(dir)
	step := a.extraStep

	var quotaShare int64
	var usedShare float64
	for _, s := range a.sharing {
		quotaShare += ledger.Quota(s.ID)
		usedShare += ledger.Usage(s.ID)
	}
	if a.spareSharing {
		quotaShare += ledger.SpareBitRate()
	}
	threshold := quotaShare - ledger.GuardBand()
	used := int64(usedShare)

	if used <= threshold {
		// Headroom: hungry slices get one step each, highest priority first.
		maxSteps := (quotaShare - used) / step
		for i := len(a.sharing) - 1; i >= 0; i-- {
			slice := a.sharing[i].ID
			idle := ledger.IdleBitRate(slice)
			switch {
			case idle < step/2 && maxSteps > 0:
				if a.apply(link, dir, slice, step, report) {
					maxSteps--
				}
			case a.holdsIdleExtra(ledger, slice):
				a.apply(link, dir, slice, -step, report)
			}
		}
		return
	}

	// Over threshold: take extra back, lowest priority first.
	deficit := used - threshold
	for _, s := range a.sharing {
		reclaimed := false
		for deficit > 0 && ledger.Extra(s.ID) >= step {
			idle := max(0, ledger.IdleBitRate(s.ID))
			if !a.apply(link, dir, s.ID, -step, report) {
				break
			}
			reclaimed = true
			deficit -= max(0, step-idle)
		}
		if !reclaimed && a.holdsIdleExtra(ledger, s.ID) {
			a.apply(link, dir, s.ID, -step, report)
		}
	}
}

// holdsIdleExtra reports a slice sitting on at least one step of extra it is not using.
func (a *SliceArbitrator) holdsIdleExtra(ledger *LinkLedger, slice SliceID) bool {
	return ledger.IdleBitRate(slice) > 2*a.extraStep && ledger.Extra(slice) >= a.extraStep
}

func (a *SliceArbitrator) apply(link *Link, dir Direction, slice SliceID, delta int64, report *TickReport) bool {
	if !link.Ledger(dir).UpdateExtra(slice, delta) {
		logrus.Debugf("arbitrator: skipped %+d bps extra for slice %d on %s %s", delta, slice, link, dir)
		report.Skipped++
		return false
	}
	report.Adjustments = append(report.Adjustments, ExtraAdjustment{Link: link.ID, Dir: dir, Slice: slice, Delta: delta})
	return true
}

// syncMeters issues at most one meter update per slice for this link direction.
func (a *SliceArbitrator) syncMeters(link *Link, dir Direction, report *TickReport) {
	ledger := link.Ledger(dir)
	for _, s := range a.all {
		want := ledger.UnreservedBitRate(s.ID)
		diff := want - ledger.MeterBitRate(s.ID)
		if diff < 0 {
			diff = -diff
		}
		if diff > a.meterStep {
			report.MeterUpdates = append(report.MeterUpdates, a.program(link, dir, s.ID, want))
		}
	}
}

func (a *SliceArbitrator) program(link *Link, dir Direction, slice SliceID, bitRate int64) MeterUpdate {
	link.Ledger(dir).SetMeterBitRate(slice, bitRate)
	if a.meters != nil {
		a.meters.SetMeterRate(link.ID, dir, slice, bitRate/1000)
	}
	logrus.Debugf("meter %s %s slice %d -> %d kbps", link, dir, slice, bitRate/1000)
	return MeterUpdate{Link: link.ID, Dir: dir, Slice: slice, BitRate: bitRate}
}

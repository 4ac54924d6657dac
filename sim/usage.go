package sim

import "fmt"

type ledgerKey struct {
	link  LinkID
	dir   Direction
	slice SliceID
}

// UsageSampler estimates the bit rate each slice carries on every link direction
// and folds it into the ledger EWMA. GBR bearers carry rate*activity; non-GBR
// traffic of a slice is capped by the slice meter on that link direction.
type UsageSampler struct {
	store    LinkLedgerStore
	engine   *RoutingDecisionEngine
	registry BearerRegistry
	alpha    float64
}

// NewUsageSampler creates a sampler. Panics unless alpha is in (0,1].
func NewUsageSampler(store LinkLedgerStore, engine *RoutingDecisionEngine, registry BearerRegistry, alpha float64) *UsageSampler {
	if alpha <= 0 || alpha > 1 {
		panic(fmt.Sprintf("UsageSampler: alpha must be in (0,1], got %v", alpha))
	}
	return &UsageSampler{store: store, engine: engine, registry: registry, alpha: alpha}
}

// Sample walks the admitted bearers of each slice and updates all ledgers, including
// slices that carried nothing so their average decays.
func (u *UsageSampler) Sample() {
	gbr := make(map[ledgerKey]float64)
	best := make(map[ledgerKey]float64)
	ring := u.store.Ring()

	for _, slice := range u.store.Slices() {
		for _, info := range u.registry.BySlice(slice.ID) {
			rec, ok := u.engine.Record(info.ID)
			if !ok || !rec.Admitted() {
				continue
			}
			target := best
			if info.GBR {
				target = gbr
			}
			down := float64(info.Downlink) * info.Activity
			up := float64(info.Uplink) * info.Activity
			for _, i := range Interfaces {
				ep := rec.Endpoints[i]
				if rec.Paths[i] == PathLocal {
					continue
				}
				ring.Walk(ep.Src, ep.Dst, rec.Paths[i], func(link LinkID, dir Direction) {
					target[ledgerKey{link, dir, slice.ID}] += down
					target[ledgerKey{link, dir.Reverse(), slice.ID}] += up
				})
			}
		}
	}

	for _, link := range u.store.Links() {
		for _, dir := range Directions {
			ledger := link.Ledger(dir)
			for _, slice := range ledger.Slices() {
				key := ledgerKey{link.ID, dir, slice}
				carried := gbr[key] + min(best[key], float64(ledger.MeterBitRate(slice)))
				ledger.UpdateUsage(slice, int64(carried), u.alpha)
			}
		}
	}
}

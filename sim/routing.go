package sim

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// RoutingDecisionEngine runs the per-bearer admission state machine: it assigns
// shortest default paths, reserves bandwidth along them, falls back to the
// alternatives of the bearer's RoutingStrategy, and otherwise blocks the bearer.
//
// The engine owns every RoutingRecord. It is not safe for concurrent use; callers
// serialize Request, Release and arbitrator ticks on a single handler.
type RoutingDecisionEngine struct {
	store    LinkLedgerStore
	strategy RoutingStrategy
	debar    DebarConfig
	records  map[BearerID]*RoutingRecord
	slices   map[SliceID]bool
}

// NewRoutingDecisionEngine creates an engine over store. cfg.Strategy names the default
// strategy used by requests that carry none.
func NewRoutingDecisionEngine(store LinkLedgerStore, cfg RoutingConfig) *RoutingDecisionEngine {
	e := &RoutingDecisionEngine{
		store:    store,
		strategy: NewRoutingStrategy(cfg.Strategy),
		debar:    cfg.Debar,
		records:  make(map[BearerID]*RoutingRecord),
		slices:   make(map[SliceID]bool),
	}
	for _, s := range store.Slices() {
		e.slices[s.ID] = true
	}
	return e
}

// Request admits or blocks a bearer. A bearer that already holds a reservation has it
// released first; every request is evaluated from the default paths.
func (e *RoutingDecisionEngine) Request(req BearerRequest) Decision {
	if !e.slices[req.Slice] {
		panic(fmt.Sprintf("RoutingDecisionEngine: bearer %d references unknown slice %d", req.ID, req.Slice))
	}
	ring := e.store.Ring()
	rec, ok := e.records[req.ID]
	if !ok {
		rec = &RoutingRecord{Bearer: req.ID, Endpoints: req.Endpoints}
		rec.Defaults = e.defaultPaths(ring, req.Endpoints)
		e.records[req.ID] = rec
	} else {
		if rec.Reservation != nil {
			ReleaseReservation(e.store, rec.Reservation)
			rec.Reservation = nil
		}
		if rec.Endpoints != req.Endpoints {
			logrus.Debugf("bearer %d endpoints moved %v -> %v, recomputing default paths", req.ID, rec.Endpoints, req.Endpoints)
			rec.Endpoints = req.Endpoints
			rec.Defaults = e.defaultPaths(ring, req.Endpoints)
		}
	}
	rec.Slice = req.Slice
	rec.Paths = rec.Defaults
	rec.Reason = BlockNone

	if !req.GBR || (rec.Defaults[InterfaceA] == PathLocal && rec.Defaults[InterfaceB] == PathLocal) {
		rec.State = StateAccepted
		logrus.Debugf("bearer %d accepted without reservation (gbr=%v, paths=%v)", req.ID, req.GBR, rec.Paths)
		return Decision{BearerID: req.ID, Accepted: true, Paths: rec.Paths, Alternative: -1}
	}

	strategy := req.Strategy
	if strategy == nil {
		strategy = e.strategy
	}
	candidates := append([]RoutingPaths{rec.Defaults}, strategy.Alternatives(rec.Defaults)...)
	for i, paths := range candidates {
		if i > 0 && paths == rec.Defaults {
			continue // inverting a local interface changes nothing
		}
		tx := NewReservationTransaction(e.store, req.Slice, e.legs(req, rec.Defaults, paths))
		if !tx.Check() {
			if c := tx.Failure(); c != nil {
				logrus.Debugf("bearer %d: paths %v rejected on link %d %s (need %d bps)", req.ID, paths, c.Link, c.Dir, c.BitRate)
			}
			continue
		}
		rec.Reservation = tx.Commit()
		rec.Paths = paths
		rec.State = StateReserved
		logrus.Debugf("bearer %d reserved on paths %v (alternative %d, strategy %s)", req.ID, paths, i, strategy.Name())
		return Decision{BearerID: req.ID, Accepted: true, Paths: paths, Reserved: true, Alternative: i}
	}

	rec.State = StateBlocked
	rec.Reason = BlockInsufficientLinkBandwidth
	logrus.Debugf("bearer %d blocked: %s", req.ID, rec.Reason)
	return Decision{BearerID: req.ID, Reason: rec.Reason, Paths: rec.Paths, Alternative: -1}
}

// Release frees whatever the bearer currently holds and forgets its record.
// Returns false when the bearer is unknown, so a repeated release is a no-op.
func (e *RoutingDecisionEngine) Release(id BearerID) bool {
	rec, ok := e.records[id]
	if !ok {
		return false
	}
	if rec.Reservation != nil {
		ReleaseReservation(e.store, rec.Reservation)
		rec.Reservation = nil
	}
	delete(e.records, id)
	logrus.Debugf("bearer %d released", id)
	return true
}

// Record returns the routing record of a bearer.
func (e *RoutingDecisionEngine) Record(id BearerID) (*RoutingRecord, bool) {
	rec, ok := e.records[id]
	return rec, ok
}

// Records returns all routing records ordered by bearer id.
func (e *RoutingDecisionEngine) Records() []*RoutingRecord {
	out := make([]*RoutingRecord, 0, len(e.records))
	for _, rec := range e.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bearer < out[j].Bearer })
	return out
}

func (e *RoutingDecisionEngine) defaultPaths(ring *Ring, eps [2]Endpoints) RoutingPaths {
	var paths RoutingPaths
	for _, i := range Interfaces {
		paths[i] = ring.ShortestPath(eps[i].Src, eps[i].Dst)
	}
	return paths
}

func (e *RoutingDecisionEngine) legs(req BearerRequest, defaults, paths RoutingPaths) [2]Leg {
	var legs [2]Leg
	for _, i := range Interfaces {
		legs[i] = Leg{
			Endpoints: req.Endpoints[i],
			Path:      paths[i],
			Downlink:  req.Downlink,
			Uplink:    req.Uplink,
			Discount:  e.discount(req.Endpoints[i], paths[i], defaults[i]),
		}
	}
	return legs
}

// discount returns the DeBaR factor for one interface: 1 - hops*step when DeBaR is
// enabled for this kind of path (default or inverted), 1 otherwise.
func (e *RoutingDecisionEngine) discount(ep Endpoints, path, def RoutingPath) float64 {
	if path == PathLocal || e.debar.Step == 0 {
		return 1
	}
	if path == def && !e.debar.ShortestPath {
		return 1
	}
	if path != def && !e.debar.LongestPath {
		return 1
	}
	hops := e.store.Ring().HopCount(ep.Src, ep.Dst, path)
	return 1 - float64(hops)*e.debar.Step
}

package sim

import (
	"fmt"
	"sort"
)

// BearerID identifies a bearer for its whole lifetime.
type BearerID uint64

// BlockReason explains why a bearer was not admitted.
type BlockReason string

const (
	BlockNone                      BlockReason = ""
	BlockInsufficientLinkBandwidth BlockReason = "INSUFFICIENT_LINK_BANDWIDTH"
)

// BearerRequest asks the engine to admit a bearer.
type BearerRequest struct {
	ID       BearerID
	Slice    SliceID
	GBR      bool
	Downlink int64 // bit/s
	Uplink   int64 // bit/s
	// Endpoints per interface, indexed by Interface.
	Endpoints [2]Endpoints
	// Strategy overrides the engine default when non-nil.
	Strategy RoutingStrategy
}

// Decision is the outcome of a bearer request.
type Decision struct {
	BearerID BearerID
	Accepted bool
	Reason   BlockReason
	Paths    RoutingPaths
	Reserved bool // false for non-GBR and local bearers, which hold no reservation
	// Alternative is 0 when admitted on the default paths, k for the k-th strategy
	// alternative, and -1 when not routed through a reservation.
	Alternative int
}

// RoutingState is the lifecycle state of a bearer routing record.
type RoutingState int

const (
	// StateDefaultPaths: defaults assigned, no decision yet.
	StateDefaultPaths RoutingState = iota
	// StateAccepted: admitted without reservation (non-GBR or local).
	StateAccepted
	// StateReserved: admitted with a committed reservation.
	StateReserved
	// StateBlocked: rejected; holds no bandwidth.
	StateBlocked
)

func (s RoutingState) String() string {
	switch s {
	case StateDefaultPaths:
		return "default-paths"
	case StateAccepted:
		return "accepted"
	case StateReserved:
		return "reserved"
	case StateBlocked:
		return "blocked"
	default:
		return fmt.Sprintf("RoutingState(%d)", int(s))
	}
}

// RoutingRecord is the engine-owned routing state of one bearer.
type RoutingRecord struct {
	Bearer      BearerID
	Slice       SliceID
	Endpoints   [2]Endpoints
	Defaults    RoutingPaths
	Paths       RoutingPaths
	State       RoutingState
	Reason      BlockReason
	Reservation *Reservation
}

// Admitted reports whether the bearer is currently carrying traffic.
func (r *RoutingRecord) Admitted() bool {
	return r.State == StateAccepted || r.State == StateReserved
}

// BearerInfo is the bearer metadata kept in a BearerRegistry.
type BearerInfo struct {
	BearerRequest
	// Activity is the fraction of the requested bit rates the bearer actually carries.
	Activity    float64
	ArrivalTime int64 // ticks
	HoldingTime int64 // ticks; 0 = held until the end of the run
}

// BearerRegistry locates bearer metadata by id.
type BearerRegistry interface {
	Put(info *BearerInfo) error
	Get(id BearerID) (*BearerInfo, bool)
	Delete(id BearerID) bool
	BySlice(slice SliceID) []*BearerInfo
	Len() int
}

// MapRegistry is a map-backed BearerRegistry.
type MapRegistry struct {
	bearers map[BearerID]*BearerInfo
}

// NewMapRegistry creates an empty MapRegistry.
func NewMapRegistry() *MapRegistry {
	return &MapRegistry{bearers: make(map[BearerID]*BearerInfo)}
}

func (r *MapRegistry) Put(info *BearerInfo) error {
	r.bearers[info.ID] = info
	return nil
}

func (r *MapRegistry) Get(id BearerID) (*BearerInfo, bool) {
	info, ok := r.bearers[id]
	return info, ok
}

func (r *MapRegistry) Delete(id BearerID) bool {
	if _, ok := r.bearers[id]; !ok {
		return false
	}
	delete(r.bearers, id)
	return true
}

// BySlice returns the bearers of slice ordered by id.
func (r *MapRegistry) BySlice(slice SliceID) []*BearerInfo {
	var out []*BearerInfo
	for _, info := range r.bearers {
		if info.Slice == slice {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *MapRegistry) Len() int { return len(r.bearers) }

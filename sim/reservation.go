package sim

import "fmt"

// Interface selects one of the two logical interfaces of a bearer.
type Interface int

const (
	InterfaceA Interface = iota
	InterfaceB
)

// Interfaces lists both interfaces in walk order.
var Interfaces = [...]Interface{InterfaceA, InterfaceB}

func (i Interface) String() string {
	if i == InterfaceA {
		return "A"
	}
	return "B"
}

// Endpoints are the switches an interface connects. Downlink traffic flows
// from Src to Dst, uplink from Dst to Src.
type Endpoints struct {
	Src SwitchIndex `yaml:"src"`
	Dst SwitchIndex `yaml:"dst"`
}

// RoutingPaths holds one path per interface, indexed by Interface.
type RoutingPaths [2]RoutingPath

// Leg is one interface's contribution to a reservation.
type Leg struct {
	Endpoints
	Path     RoutingPath
	Downlink int64
	Uplink   int64
	Discount float64 // DeBaR factor in (0,1] applied when checking this leg's hops
}

// Charge is the bit rate a reservation holds on one link direction.
type Charge struct {
	Link     LinkID
	Dir      Direction
	BitRate  int64
	discount float64
}

// Reservation is the exact set of ledger charges committed for a bearer.
// Releasing it returns precisely what was reserved.
type Reservation struct {
	Slice   SliceID
	Paths   RoutingPaths
	Charges []Charge
}

type txState int

const (
	txPending txState = iota
	txChecked
	txRejected
	txCommitted
)

// ReservationTransaction drives an all-or-nothing check-then-commit across every hop
// of a two-interface path. Demands on a link direction touched by both interfaces are
// summed before checking, so overlapping paths cannot double-book a link.
type ReservationTransaction struct {
	store   LinkLedgerStore
	slice   SliceID
	paths   RoutingPaths
	plan    []Charge
	state   txState
	failure *Charge
}

// NewReservationTransaction plans the charges for legs (one per interface, in
// Interface order). No ledger is touched until Commit.
func NewReservationTransaction(store LinkLedgerStore, slice SliceID, legs [2]Leg) *ReservationTransaction {
	tx := &ReservationTransaction{store: store, slice: slice}
	index := make(map[[2]int]int)
	add := func(link LinkID, dir Direction, bitRate int64, discount float64) {
		if bitRate == 0 {
			return
		}
		key := [2]int{int(link), int(dir)}
		if i, ok := index[key]; ok {
			tx.plan[i].BitRate += bitRate
			tx.plan[i].discount = min(tx.plan[i].discount, discount)
			return
		}
		index[key] = len(tx.plan)
		tx.plan = append(tx.plan, Charge{Link: link, Dir: dir, BitRate: bitRate, discount: discount})
	}
	ring := store.Ring()
	for i, leg := range legs {
		tx.paths[i] = leg.Path
		discount := leg.Discount
		if discount == 0 {
			discount = 1
		}
		ring.Walk(leg.Src, leg.Dst, leg.Path, func(link LinkID, dir Direction) {
			add(link, dir, leg.Downlink, discount)
			add(link, dir.Reverse(), leg.Uplink, discount)
		})
	}
	return tx
}

// Check tests every planned charge against the ledgers without mutating them.
// Returns true only if all hops of both interfaces have enough bandwidth.
func (tx *ReservationTransaction) Check() bool {
	if tx.state != txPending {
		panic("ReservationTransaction: Check called twice")
	}
	for i := range tx.plan {
		c := &tx.plan[i]
		ledger := tx.store.Ledger(c.Link, c.Dir)
		if ledger.AvailableBitRate(tx.slice, c.discount) < c.BitRate {
			tx.state = txRejected
			tx.failure = c
			return false
		}
	}
	tx.state = txChecked
	return true
}

// Failure returns the first charge that failed Check, or nil.
func (tx *ReservationTransaction) Failure() *Charge {
	return tx.failure
}

// Commit reserves every planned charge. It must follow a passing Check with no other
// ledger mutation in between; a ledger refusing a checked charge panics.
func (tx *ReservationTransaction) Commit() *Reservation {
	if tx.state != txChecked {
		panic("ReservationTransaction: Commit without a passing Check")
	}
	for _, c := range tx.plan {
		if !tx.store.Ledger(c.Link, c.Dir).Reserve(tx.slice, c.BitRate) {
			panic(fmt.Sprintf("ReservationTransaction: commit of %d bps for slice %d failed on link %d %s after passing check",
				c.BitRate, tx.slice, c.Link, c.Dir))
		}
	}
	tx.state = txCommitted
	return &Reservation{
		Slice:   tx.slice,
		Paths:   tx.paths,
		Charges: append([]Charge(nil), tx.plan...),
	}
}

// ReleaseReservation returns every charge held by res to its ledger.
func ReleaseReservation(store LinkLedgerStore, res *Reservation) {
	for _, c := range res.Charges {
		store.Ledger(c.Link, c.Dir).Release(res.Slice, c.BitRate)
	}
}

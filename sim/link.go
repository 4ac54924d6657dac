package sim

import "fmt"

// LinkID identifies the link between switch i and switch (i+1) mod N.
type LinkID int

// Direction is the travel direction over a link.
type Direction int

const (
	// DirClockwise carries traffic from switch i to switch i+1.
	DirClockwise Direction = iota
	// DirCounterClockwise carries traffic from switch i+1 to switch i.
	DirCounterClockwise
)

// Directions lists both link directions in a fixed order.
var Directions = [...]Direction{DirClockwise, DirCounterClockwise}

func (d Direction) String() string {
	switch d {
	case DirClockwise:
		return "cw"
	case DirCounterClockwise:
		return "ccw"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	if d == DirClockwise {
		return DirCounterClockwise
	}
	return DirClockwise
}

// Link is an undirected connection between two adjacent switches.
// It owns one LinkLedger per direction.
type Link struct {
	ID      LinkID
	A, B    SwitchIndex // B == (A+1) mod N
	ledgers [2]*LinkLedger
}

// Ledger returns the ledger for dir.
func (l *Link) Ledger(dir Direction) *LinkLedger {
	return l.ledgers[dir]
}

func (l *Link) String() string {
	return fmt.Sprintf("link %d (%d<->%d)", l.ID, l.A, l.B)
}

// LinkLedgerStore gives the routing engine and the arbitrator access to the ring
// and its link ledgers.
type LinkLedgerStore interface {
	Ring() *Ring
	Links() []*Link
	Ledger(id LinkID, dir Direction) *LinkLedger
	Slices() []Slice
}

// RingNetwork is the in-memory LinkLedgerStore built from a static topology.
type RingNetwork struct {
	ring   *Ring
	links  []*Link
	slices []Slice
}

// NewRingNetwork builds the ring and pre-populates both ledgers of every link.
// Returns an error for configurations violating the ledger invariants.
func NewRingNetwork(topo TopologyConfig, slices []Slice) (*RingNetwork, error) {
	if topo.Switches < 3 {
		return nil, fmt.Errorf("ring needs at least 3 switches, got %d", topo.Switches)
	}
	capacity := int64(topo.LinkCapacity)
	quotas := make(map[SliceID]int64, len(slices))
	for _, s := range slices {
		if _, dup := quotas[s.ID]; dup {
			return nil, fmt.Errorf("duplicate slice id %d", s.ID)
		}
		quotas[s.ID] = s.QuotaBitRate(capacity)
	}
	n := &RingNetwork{
		ring:   NewRing(topo.Switches),
		links:  make([]*Link, topo.Switches),
		slices: append([]Slice(nil), slices...),
	}
	for i := range n.links {
		link := &Link{
			ID: LinkID(i),
			A:  SwitchIndex(i),
			B:  SwitchIndex((i + 1) % topo.Switches),
		}
		for _, dir := range Directions {
			ledger, err := NewLinkLedger(capacity, int64(topo.GuardBand), quotas)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", link, dir, err)
			}
			link.ledgers[dir] = ledger
		}
		n.links[i] = link
	}
	return n, nil
}

// Ring returns the ring topology.
func (n *RingNetwork) Ring() *Ring { return n.ring }

// Links returns all links in ID order.
func (n *RingNetwork) Links() []*Link { return n.links }

// Slices returns the configured slices.
func (n *RingNetwork) Slices() []Slice { return n.slices }

// Ledger returns the ledger of link id in direction dir. Panics on unknown links.
func (n *RingNetwork) Ledger(id LinkID, dir Direction) *LinkLedger {
	if id < 0 || int(id) >= len(n.links) {
		panic(fmt.Sprintf("RingNetwork: link %d out of range [0,%d)", id, len(n.links)))
	}
	return n.links[id].Ledger(dir)
}

package sim

import "fmt"

// SwitchIndex identifies a switch by its clockwise position on the ring.
type SwitchIndex int

// RoutingPath is the rotational direction used by one interface of a bearer.
type RoutingPath int

const (
	// PathLocal means both endpoints sit on the same switch; no link is traversed.
	PathLocal RoutingPath = iota
	// PathClockwise walks i → i+1.
	PathClockwise
	// PathCounterClockwise walks i → i-1.
	PathCounterClockwise
)

func (p RoutingPath) String() string {
	switch p {
	case PathLocal:
		return "local"
	case PathClockwise:
		return "clockwise"
	case PathCounterClockwise:
		return "counterclockwise"
	default:
		return fmt.Sprintf("RoutingPath(%d)", int(p))
	}
}

// Invert returns the opposite rotation. PathLocal has no opposite and is returned unchanged.
func (p RoutingPath) Invert() RoutingPath {
	switch p {
	case PathClockwise:
		return PathCounterClockwise
	case PathCounterClockwise:
		return PathClockwise
	default:
		return p
	}
}

// Ring provides index arithmetic over N switches arranged in a ring.
// Switch i is adjacent only to (i+1) mod N and (i-1+N) mod N.
// Link i connects switch i and switch (i+1) mod N.
type Ring struct {
	size int
}

// NewRing creates a Ring of size switches. Panics if size < 3.
func NewRing(size int) *Ring {
	if size < 3 {
		panic(fmt.Sprintf("Ring: size must be >= 3, got %d", size))
	}
	return &Ring{size: size}
}

// Size returns the number of switches N.
func (r *Ring) Size() int {
	return r.size
}

func (r *Ring) mustContain(i SwitchIndex) {
	if i < 0 || int(i) >= r.size {
		panic(fmt.Sprintf("Ring: switch index %d out of range [0,%d)", i, r.size))
	}
}

// NextIndex returns the neighbor of i along path. Panics for PathLocal.
func (r *Ring) NextIndex(i SwitchIndex, path RoutingPath) SwitchIndex {
	r.mustContain(i)
	switch path {
	case PathClockwise:
		return SwitchIndex((int(i) + 1) % r.size)
	case PathCounterClockwise:
		return SwitchIndex((int(i) - 1 + r.size) % r.size)
	default:
		panic(fmt.Sprintf("Ring: NextIndex undefined for path %s", path))
	}
}

// ShortestPath returns the rotation with fewer hops from src to dst.
// An exact tie (dst opposite src on an even ring) favors PathClockwise.
func (r *Ring) ShortestPath(src, dst SwitchIndex) RoutingPath {
	r.mustContain(src)
	r.mustContain(dst)
	if src == dst {
		return PathLocal
	}
	d := (int(dst) - int(src) + r.size) % r.size
	if d <= r.size/2 {
		return PathClockwise
	}
	return PathCounterClockwise
}

// HopCount returns the number of links traversed from src to dst along path.
func (r *Ring) HopCount(src, dst SwitchIndex, path RoutingPath) int {
	r.mustContain(src)
	r.mustContain(dst)
	switch path {
	case PathLocal:
		return 0
	case PathClockwise:
		return (int(dst) - int(src) + r.size) % r.size
	case PathCounterClockwise:
		return (int(src) - int(dst) + r.size) % r.size
	default:
		panic(fmt.Sprintf("Ring: unknown path %d", int(path)))
	}
}

// Hop returns the link and direction used when leaving switch i along path.
func (r *Ring) Hop(i SwitchIndex, path RoutingPath) (LinkID, Direction) {
	next := r.NextIndex(i, path)
	if path == PathClockwise {
		return LinkID(i), DirClockwise
	}
	return LinkID(next), DirCounterClockwise
}

// Walk calls visit for every hop from src to dst along path, in travel order.
// A PathLocal walk between distinct switches is a programming error.
func (r *Ring) Walk(src, dst SwitchIndex, path RoutingPath, visit func(link LinkID, dir Direction)) {
	r.mustContain(src)
	r.mustContain(dst)
	if path == PathLocal {
		if src != dst {
			panic(fmt.Sprintf("Ring: local path between distinct switches %d and %d", src, dst))
		}
		return
	}
	for cur := src; cur != dst; cur = r.NextIndex(cur, path) {
		link, dir := r.Hop(cur, path)
		visit(link, dir)
	}
}

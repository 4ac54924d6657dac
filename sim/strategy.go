package sim

import "fmt"

// RoutingStrategy decides which path combinations the engine tries after the default
// (shortest) paths fail admission. Implementations must not touch the ledgers.
type RoutingStrategy interface {
	Name() string
	// Alternatives returns the path sets to try, in order, once defaults are rejected.
	Alternatives(defaults RoutingPaths) []RoutingPaths
}

// ShortestOnly never leaves the default paths.
type ShortestOnly struct{}

func (ShortestOnly) Name() string { return "shortest-only" }

func (ShortestOnly) Alternatives(RoutingPaths) []RoutingPaths { return nil }

// ShortestFirst falls back to the inverted paths: interface A only, interface B only,
// then both. Each alternative starts from the defaults; there is no backtracking.
type ShortestFirst struct{}

func (ShortestFirst) Name() string { return "shortest-first" }

func (ShortestFirst) Alternatives(defaults RoutingPaths) []RoutingPaths {
	invertA := defaults
	invertA[InterfaceA] = defaults[InterfaceA].Invert()
	invertB := defaults
	invertB[InterfaceB] = defaults[InterfaceB].Invert()
	both := RoutingPaths{defaults[InterfaceA].Invert(), defaults[InterfaceB].Invert()}
	return []RoutingPaths{invertA, invertB, both}
}

// ValidRoutingStrategies is the set of recognized strategy names.
var ValidRoutingStrategies = map[string]bool{"": true, "shortest-only": true, "shortest-first": true}

// IsValidRoutingStrategy returns true if name is a recognized strategy.
func IsValidRoutingStrategy(name string) bool {
	return ValidRoutingStrategies[name]
}

// NewRoutingStrategy creates a strategy by name. An empty name defaults to ShortestOnly.
// Panics on unrecognized names.
func NewRoutingStrategy(name string) RoutingStrategy {
	if !IsValidRoutingStrategy(name) {
		panic(fmt.Sprintf("unknown routing strategy %q", name))
	}
	switch name {
	case "", "shortest-only":
		return ShortestOnly{}
	case "shortest-first":
		return ShortestFirst{}
	default:
		panic(fmt.Sprintf("unhandled routing strategy %q", name))
	}
}

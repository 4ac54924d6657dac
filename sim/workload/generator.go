package workload

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/ring-sim/ring-sim/sim"
)

// GenerateBearers creates a bearer sequence from a WorkloadSpec for a ring of
// the given size. Deterministic given the same spec and seed.
// Returns bearers sorted by ArrivalTime with sequential IDs starting at 1.
func GenerateBearers(spec *WorkloadSpec, switches int, horizon int64) ([]*sim.BearerInfo, error) {
	if horizon <= 0 {
		return nil, nil
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workload spec: %w", err)
	}
	if switches < 3 {
		return nil, fmt.Errorf("ring needs at least 3 switches, got %d", switches)
	}

	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(spec.Seed))
	arrivalRNG := rng.ForSubsystem(sim.SubsystemArrivals)
	placementRNG := rng.ForSubsystem(sim.SubsystemPlacement)
	trafficRNG := rng.ForSubsystem(sim.SubsystemTraffic)

	var all []*sim.BearerInfo
	for i := range spec.Classes {
		class := &spec.Classes[i]

		// Per-class arrival stream, derived from the arrivals RNG for isolation
		classRNG := rand.New(rand.NewSource(arrivalRNG.Int63()))
		sampler := NewArrivalSampler(class.Arrival, class.Rate/1e6)

		var strategy sim.RoutingStrategy
		if class.Strategy != "" {
			strategy = sim.NewRoutingStrategy(class.Strategy)
		}
		activity := class.Activity
		if activity == 0 {
			activity = 1
		}

		currentTime := int64(0)
		for {
			currentTime += sampler.SampleIAT(classRNG)
			if currentTime >= horizon {
				break
			}
			pgw := sim.SwitchIndex(class.Placement.PacketGateway)
			sgw := pick(placementRNG, class.Placement.ServingGateway, switches)
			enb := pick(placementRNG, class.Placement.BaseStations, switches)

			info := &sim.BearerInfo{
				BearerRequest: sim.BearerRequest{
					Slice:    class.Slice,
					GBR:      trafficRNG.Float64() < class.GBRFraction,
					Downlink: uniform(trafficRNG, class.Downlink),
					Uplink:   uniform(trafficRNG, class.Uplink),
					Endpoints: [2]sim.Endpoints{
						{Src: pgw, Dst: sgw},
						{Src: sgw, Dst: enb},
					},
					Strategy: strategy,
				},
				Activity:    activity,
				ArrivalTime: currentTime,
			}
			if class.MeanHolding > 0 {
				mean := float64(sim.Ticks(class.MeanHolding))
				info.HoldingTime = atLeastOne(trafficRNG.ExpFloat64() * mean)
			}
			all = append(all, info)
		}
	}

	// Sort by arrival time (stable sort preserves class order for ties)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].ArrivalTime < all[j].ArrivalTime
	})
	if spec.MaxBearers > 0 && len(all) > spec.MaxBearers {
		all = all[:spec.MaxBearers]
	}
	for i, b := range all {
		b.ID = sim.BearerID(i + 1)
	}
	return all, nil
}

// pick returns one of choices, or any switch of the ring when choices is empty.
func pick(rng *rand.Rand, choices []int, switches int) sim.SwitchIndex {
	if len(choices) == 0 {
		return sim.SwitchIndex(rng.Intn(switches))
	}
	return sim.SwitchIndex(choices[rng.Intn(len(choices))])
}

func uniform(rng *rand.Rand, r RateRange) int64 {
	if r.Max == r.Min {
		return int64(r.Min)
	}
	return int64(r.Min) + rng.Int63n(int64(r.Max-r.Min)+1)
}

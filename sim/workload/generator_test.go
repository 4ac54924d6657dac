package workload

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ring-sim/ring-sim/sim"
)

func TestGenerateBearers_SortedWithSequentialIDs(t *testing.T) {
	spec := validSpec()
	spec.Classes = append(spec.Classes, BearerClass{
		ID:       "iot",
		Slice:    1,
		Rate:     5,
		Arrival:  ArrivalSpec{Process: "constant"},
		Downlink: RateRange{Min: 10 * sim.Kbps, Max: 10 * sim.Kbps},
		Uplink:   RateRange{Min: 10 * sim.Kbps, Max: 10 * sim.Kbps},
	})

	bearers, err := GenerateBearers(spec, 6, sim.Ticks(20*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bearers) < 100 {
		t.Fatalf("got %d bearers, want at least 100 (5/s constant over 20s)", len(bearers))
	}
	for i, b := range bearers {
		if b.ID != sim.BearerID(i+1) {
			t.Fatalf("bearer %d: ID = %d, want %d", i, b.ID, i+1)
		}
		if i > 0 && b.ArrivalTime < bearers[i-1].ArrivalTime {
			t.Fatalf("bearer %d arrives before its predecessor", i)
		}
		if b.ArrivalTime >= sim.Ticks(20*time.Second) {
			t.Fatalf("bearer %d arrives at %d, past the horizon", i, b.ArrivalTime)
		}
	}
}

func TestGenerateBearers_EndpointsChainThroughServingGateway(t *testing.T) {
	spec := validSpec()
	spec.Classes[0].Placement = PlacementSpec{PacketGateway: 2, ServingGateway: []int{4}, BaseStations: []int{0, 1}}

	bearers, err := GenerateBearers(spec, 6, sim.Ticks(30*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, b := range bearers {
		a, bb := b.Endpoints[sim.InterfaceA], b.Endpoints[sim.InterfaceB]
		if a.Src != 2 || a.Dst != 4 || bb.Src != 4 {
			t.Fatalf("bearer %d: endpoints %+v, want pgw 2 -> sgw 4 -> enb", b.ID, b.Endpoints)
		}
		if bb.Dst != 0 && bb.Dst != 1 {
			t.Fatalf("bearer %d: base station %d not in [0 1]", b.ID, bb.Dst)
		}
	}
}

func TestGenerateBearers_RatesWithinRange(t *testing.T) {
	spec := validSpec()
	bearers, err := GenerateBearers(spec, 6, sim.Ticks(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gbr := 0
	for _, b := range bearers {
		if b.Downlink < int64(sim.Mbps) || b.Downlink > int64(4*sim.Mbps) {
			t.Errorf("bearer %d: downlink %d outside [1M,4M]", b.ID, b.Downlink)
		}
		if b.Uplink != int64(100*sim.Kbps) {
			t.Errorf("bearer %d: uplink %d, want 100k", b.ID, b.Uplink)
		}
		if b.Activity != 1 {
			t.Errorf("bearer %d: activity %v, want default 1", b.ID, b.Activity)
		}
		if b.HoldingTime <= 0 {
			t.Errorf("bearer %d: holding time %d, want > 0", b.ID, b.HoldingTime)
		}
		if b.Strategy != nil {
			t.Errorf("bearer %d: strategy %v, want network default", b.ID, b.Strategy)
		}
		if b.GBR {
			gbr++
		}
	}
	if gbr == 0 || gbr == len(bearers) {
		t.Errorf("gbr_fraction 0.5 produced %d of %d GBR bearers", gbr, len(bearers))
	}
}

func TestGenerateBearers_ZeroHolding_HeldUntilEnd(t *testing.T) {
	spec := validSpec()
	spec.Classes[0].MeanHolding = 0
	spec.Classes[0].Strategy = "shortest-first"
	bearers, err := GenerateBearers(spec, 6, sim.Ticks(10*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, b := range bearers {
		if b.HoldingTime != 0 {
			t.Fatalf("bearer %d: holding %d, want 0", b.ID, b.HoldingTime)
		}
		if b.Strategy == nil || b.Strategy.Name() != "shortest-first" {
			t.Fatalf("bearer %d: strategy %v, want shortest-first", b.ID, b.Strategy)
		}
	}
}

func TestGenerateBearers_MaxBearersCaps(t *testing.T) {
	spec := validSpec()
	spec.MaxBearers = 5
	bearers, err := GenerateBearers(spec, 6, sim.Ticks(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bearers) != 5 {
		t.Errorf("got %d bearers, want 5", len(bearers))
	}
}

func TestGenerateBearers_Deterministic(t *testing.T) {
	spec := validSpec()
	first, err := GenerateBearers(spec, 6, sim.Ticks(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	second, err := GenerateBearers(spec, 6, sim.Ticks(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("same seed produced different bearers (-first +second):\n%s", diff)
	}

	spec.Seed = 43
	third, _ := GenerateBearers(spec, 6, sim.Ticks(time.Minute))
	if cmp.Equal(first, third) {
		t.Error("different seeds produced identical bearers")
	}
}

func TestGenerateBearers_Errors(t *testing.T) {
	if _, err := GenerateBearers(&WorkloadSpec{}, 6, 1000); err == nil {
		t.Error("expected validation error for empty spec")
	}
	if _, err := GenerateBearers(validSpec(), 2, 1000); err == nil {
		t.Error("expected error for a 2-switch ring")
	}
	got, err := GenerateBearers(validSpec(), 6, 0)
	if err != nil || got != nil {
		t.Errorf("zero horizon: got %v, %v; want nil, nil", got, err)
	}
}

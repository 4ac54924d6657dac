package workload

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ring-sim/ring-sim/sim"
)

// WorkloadSpec is the top-level bearer workload configuration.
// Loaded from YAML via LoadWorkloadSpec(path).
type WorkloadSpec struct {
	Seed       int64         `yaml:"seed"`
	Horizon    time.Duration `yaml:"horizon,omitempty"`
	MaxBearers int           `yaml:"max_bearers,omitempty"` // 0 = unlimited (use horizon only)
	Classes    []BearerClass `yaml:"classes"`
}

// BearerClass describes one population of bearers sharing a slice and traffic profile.
//
// Each bearer has two interfaces: interface A runs from the packet gateway switch
// to the serving gateway switch, interface B from the serving gateway to the base
// station switch. Downlink traffic follows that direction; uplink the reverse.
type BearerClass struct {
	ID          string        `yaml:"id"`
	Slice       sim.SliceID   `yaml:"slice"`
	Rate        float64       `yaml:"rate"` // bearer arrivals per second
	Arrival     ArrivalSpec   `yaml:"arrival"`
	MeanHolding time.Duration `yaml:"mean_holding"` // 0 = held until the end of the run
	GBRFraction float64       `yaml:"gbr_fraction"`
	Downlink    RateRange     `yaml:"downlink"`
	Uplink      RateRange     `yaml:"uplink"`
	Activity    float64       `yaml:"activity,omitempty"` // fraction of the rates actually carried; 0 = 1
	Strategy    string        `yaml:"strategy,omitempty"` // empty = network default
	Placement   PlacementSpec `yaml:"placement"`
}

// ArrivalSpec configures the inter-arrival time process.
type ArrivalSpec struct {
	Process string   `yaml:"process"`
	CV      *float64 `yaml:"cv,omitempty"`
}

// RateRange is a uniform bit rate range. Min == Max gives a constant rate.
type RateRange struct {
	Min sim.BitRate `yaml:"min"`
	Max sim.BitRate `yaml:"max"`
}

// PlacementSpec restricts where bearer endpoints land on the ring.
// Empty lists mean any switch.
type PlacementSpec struct {
	PacketGateway  int   `yaml:"packet_gateway"`
	ServingGateway []int `yaml:"serving_gateways,omitempty"`
	BaseStations   []int `yaml:"base_stations,omitempty"`
}

var validArrivalProcesses = map[string]bool{
	"poisson": true, "gamma": true, "constant": true,
}

// LoadWorkloadSpec reads and parses a YAML workload file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadWorkloadSpec(path string) (*WorkloadSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workload spec: %w", err)
	}
	var spec WorkloadSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing workload spec: %w", err)
	}
	return &spec, nil
}

// Validate checks that all fields of the workload are valid.
func (s *WorkloadSpec) Validate() error {
	if len(s.Classes) == 0 {
		return fmt.Errorf("at least one bearer class required")
	}
	if s.MaxBearers < 0 {
		return fmt.Errorf("max_bearers must be non-negative, got %d", s.MaxBearers)
	}
	for i := range s.Classes {
		if err := validateClass(&s.Classes[i], i); err != nil {
			return err
		}
	}
	return nil
}

// ValidateFor checks the workload against a network: slices must exist and
// placements must name switches of the ring.
func (s *WorkloadSpec) ValidateFor(net *sim.NetworkConfig) error {
	if err := s.Validate(); err != nil {
		return err
	}
	slices := make(map[sim.SliceID]bool, len(net.Slices))
	for _, sl := range net.Slices {
		slices[sl.ID] = true
	}
	n := net.Topology.Switches
	for i, c := range s.Classes {
		prefix := fmt.Sprintf("classes[%d]", i)
		if !slices[c.Slice] {
			return fmt.Errorf("%s: unknown slice %d", prefix, c.Slice)
		}
		switches := append([]int{c.Placement.PacketGateway}, c.Placement.ServingGateway...)
		switches = append(switches, c.Placement.BaseStations...)
		for _, sw := range switches {
			if sw < 0 || sw >= n {
				return fmt.Errorf("%s: switch %d out of range [0,%d)", prefix, sw, n)
			}
		}
	}
	return nil
}

func validateClass(c *BearerClass, idx int) error {
	prefix := fmt.Sprintf("classes[%d]", idx)
	if c.Rate <= 0 || math.IsNaN(c.Rate) || math.IsInf(c.Rate, 0) {
		return fmt.Errorf("%s: rate must be a finite positive number, got %f", prefix, c.Rate)
	}
	if !validArrivalProcesses[c.Arrival.Process] {
		return fmt.Errorf("%s: unknown arrival process %q; valid: poisson, gamma, constant", prefix, c.Arrival.Process)
	}
	if c.Arrival.CV != nil && *c.Arrival.CV <= 0 {
		return fmt.Errorf("%s: arrival cv must be positive, got %f", prefix, *c.Arrival.CV)
	}
	if c.MeanHolding < 0 {
		return fmt.Errorf("%s: mean_holding must be non-negative", prefix)
	}
	if c.GBRFraction < 0 || c.GBRFraction > 1 {
		return fmt.Errorf("%s: gbr_fraction must be in [0,1], got %f", prefix, c.GBRFraction)
	}
	if c.Activity < 0 || c.Activity > 1 {
		return fmt.Errorf("%s: activity must be in [0,1], got %f", prefix, c.Activity)
	}
	for name, r := range map[string]RateRange{"downlink": c.Downlink, "uplink": c.Uplink} {
		if r.Min < 0 || r.Max < r.Min {
			return fmt.Errorf("%s: %s range must satisfy 0 <= min <= max, got [%d,%d]", prefix, name, r.Min, r.Max)
		}
	}
	if !sim.IsValidRoutingStrategy(c.Strategy) {
		return fmt.Errorf("%s: unknown routing strategy %q", prefix, c.Strategy)
	}
	return nil
}

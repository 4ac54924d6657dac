package sim

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// BitRate is a bandwidth in bit/s. In YAML it accepts plain integers or
// human-readable decimal sizes such as "100M", "1.5G" or "40Mbps".
type BitRate int64

// Common bit rates.
const (
	Kbps BitRate = 1000
	Mbps         = 1000 * Kbps
	Gbps         = 1000 * Mbps
)

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *BitRate) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*b = BitRate(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("bit rate must be an integer or a size string: %w", err)
	}
	v, err := ParseBitRate(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// ParseBitRate parses a decimal size string with an optional "bps" suffix.
func ParseBitRate(s string) (BitRate, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(s), "bps")
	v, err := units.FromHumanSize(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid bit rate %q: %w", s, err)
	}
	return BitRate(v), nil
}

func (b BitRate) String() string {
	return humanize.SI(float64(b), "bps")
}

// NetworkConfig is the static description of the ring, its slices and the
// resource management policies, loadable from YAML.
type NetworkConfig struct {
	Topology    TopologyConfig    `yaml:"topology"`
	Slices      []Slice           `yaml:"slices"`
	Routing     RoutingConfig     `yaml:"routing"`
	Arbitration ArbitrationConfig `yaml:"arbitration"`
}

// TopologyConfig sizes the ring. Every link has the same capacity and guard band.
type TopologyConfig struct {
	Switches     int     `yaml:"switches"`
	LinkCapacity BitRate `yaml:"link_capacity"`
	GuardBand    BitRate `yaml:"guard_band"`
}

// RoutingConfig selects the default routing strategy and the DeBaR discount.
type RoutingConfig struct {
	Strategy string      `yaml:"strategy"` // "shortest-only" (default) or "shortest-first"
	Debar    DebarConfig `yaml:"debar"`
}

// DebarConfig configures distance-based reservation. With a positive Step, the
// available bandwidth seen on a path of h hops is scaled by 1 - h*Step.
type DebarConfig struct {
	Step         float64 `yaml:"step"`
	ShortestPath bool    `yaml:"shortest_path"` // apply on default paths
	LongestPath  bool    `yaml:"longest_path"`  // apply on inverted paths
}

// ArbitrationConfig configures the slice arbitrator and usage sampling.
type ArbitrationConfig struct {
	SpareSharing   bool          `yaml:"spare_sharing"` // lend capacity not covered by any quota
	Interval       time.Duration `yaml:"interval"`      // 0 disables arbitration
	SampleInterval time.Duration `yaml:"sample_interval"`
	ExtraStep      BitRate       `yaml:"extra_step"`
	MeterStep      BitRate       `yaml:"meter_step"`
	EWMAAlpha      float64       `yaml:"ewma_alpha"`
}

// DefaultNetworkConfig returns a 6-switch ring with 100 Mbps links and a single
// slice owning the whole capacity.
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		Topology: TopologyConfig{Switches: 6, LinkCapacity: 100 * Mbps},
		Slices:   []Slice{{ID: 1, Name: "default", QuotaPercent: 100}},
		Routing:  RoutingConfig{Strategy: "shortest-only"},
		Arbitration: ArbitrationConfig{
			Interval:       20 * time.Second,
			SampleInterval: time.Second,
			ExtraStep:      4 * Mbps,
			MeterStep:      2 * Mbps,
			EWMAAlpha:      0.25,
		},
	}
}

// LoadNetworkConfig reads a YAML network configuration. Fields missing from the
// file keep their DefaultNetworkConfig values; unknown keys are rejected.
func LoadNetworkConfig(path string) (*NetworkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading network config: %w", err)
	}
	cfg := DefaultNetworkConfig()
	cfg.Slices = nil
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing network config: %w", err)
	}
	if len(cfg.Slices) == 0 {
		cfg.Slices = DefaultNetworkConfig().Slices
	}
	return &cfg, nil
}

// Validate checks the configuration for values the ledgers and the arbitrator cannot accept.
func (c *NetworkConfig) Validate() error {
	t := c.Topology
	if t.Switches < 3 {
		return fmt.Errorf("topology.switches must be >= 3, got %d", t.Switches)
	}
	if t.LinkCapacity <= 0 {
		return fmt.Errorf("topology.link_capacity must be positive, got %d", t.LinkCapacity)
	}
	if t.GuardBand < 0 || t.GuardBand >= t.LinkCapacity {
		return fmt.Errorf("topology.guard_band must be in [0, link_capacity), got %d", t.GuardBand)
	}
	if len(c.Slices) == 0 {
		return fmt.Errorf("at least one slice required")
	}
	seen := make(map[SliceID]bool, len(c.Slices))
	var total float64
	for i, s := range c.Slices {
		if seen[s.ID] {
			return fmt.Errorf("slices[%d]: duplicate slice id %d", i, s.ID)
		}
		seen[s.ID] = true
		if s.QuotaPercent < 0 || s.QuotaPercent > 100 || math.IsNaN(s.QuotaPercent) {
			return fmt.Errorf("slices[%d]: quota_pct must be in [0,100], got %f", i, s.QuotaPercent)
		}
		total += s.QuotaPercent
	}
	if total > 100 {
		return fmt.Errorf("sum of slice quotas is %.2f%%, must not exceed 100%%", total)
	}
	if !IsValidRoutingStrategy(c.Routing.Strategy) {
		return fmt.Errorf("unknown routing strategy %q; valid: shortest-only, shortest-first", c.Routing.Strategy)
	}
	d := c.Routing.Debar
	if d.Step < 0 {
		return fmt.Errorf("routing.debar.step must be non-negative, got %f", d.Step)
	}
	if d.Step*float64(t.Switches-1) >= 1 {
		return fmt.Errorf("routing.debar.step %f leaves no bandwidth on a %d-hop path", d.Step, t.Switches-1)
	}
	a := c.Arbitration
	if a.Interval < 0 || a.SampleInterval < 0 {
		return fmt.Errorf("arbitration intervals must be non-negative")
	}
	if a.ExtraStep <= 0 {
		return fmt.Errorf("arbitration.extra_step must be positive, got %d", a.ExtraStep)
	}
	if a.MeterStep < 0 {
		return fmt.Errorf("arbitration.meter_step must be non-negative, got %d", a.MeterStep)
	}
	if a.Interval > 0 && a.SampleInterval <= 0 {
		return fmt.Errorf("arbitration.sample_interval must be positive when arbitration is enabled")
	}
	if a.SampleInterval > 0 && (a.EWMAAlpha <= 0 || a.EWMAAlpha > 1) {
		return fmt.Errorf("arbitration.ewma_alpha must be in (0,1], got %f", a.EWMAAlpha)
	}
	return nil
}

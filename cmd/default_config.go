package cmd

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ring-sim/ring-sim/sim/workload"
)

// Defaults represents the full defaults.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Defaults struct {
	Version   string                           `yaml:"version"`
	Workloads map[string]workload.WorkloadSpec `yaml:"workloads"`
}

// loadDefaults parses defaults.yaml with strict field checking.
func loadDefaults(path string) (*Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading defaults file: %w", err)
	}
	var d Defaults
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&d); err != nil {
		return nil, fmt.Errorf("parsing defaults file %s: %w", path, err)
	}
	return &d, nil
}

// presetWorkload returns a copy of the named workload preset.
func presetWorkload(path, name string) (*workload.WorkloadSpec, error) {
	d, err := loadDefaults(path)
	if err != nil {
		return nil, err
	}
	spec, ok := d.Workloads[name]
	if !ok {
		names := make([]string, 0, len(d.Workloads))
		for n := range d.Workloads {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown workload preset %q; available: %v", name, names)
	}
	return &spec, nil
}

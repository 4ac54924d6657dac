package workload

import "fmt"

// ComposeSpecs merges several workload specs into one. The seed comes from the
// first spec, the horizon is the longest one, and class IDs must be unique
// across all inputs.
func ComposeSpecs(specs []*WorkloadSpec) (*WorkloadSpec, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no specs to compose")
	}
	merged := &WorkloadSpec{Seed: specs[0].Seed}
	seen := make(map[string]int)
	for i, s := range specs {
		if s.Horizon > merged.Horizon {
			merged.Horizon = s.Horizon
		}
		merged.MaxBearers += s.MaxBearers
		for _, c := range s.Classes {
			if j, dup := seen[c.ID]; dup && c.ID != "" {
				return nil, fmt.Errorf("class %q defined in spec %d and spec %d", c.ID, j, i)
			}
			seen[c.ID] = i
			merged.Classes = append(merged.Classes, c)
		}
	}
	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("composed spec: %w", err)
	}
	return merged, nil
}

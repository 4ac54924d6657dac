package sim

import "sort"

// SliceID identifies a logical network sharing the ring backhaul.
type SliceID int

// Slice is the static metadata of one slice, supplied once at startup.
type Slice struct {
	ID       SliceID `yaml:"id"`
	Name     string  `yaml:"name"`
	Priority int     `yaml:"priority"` // higher value = served first when granting extra bandwidth
	Sharing  bool    `yaml:"sharing"`  // participates in extra bandwidth arbitration
	// QuotaPercent is the share of every link's capacity reserved for this slice, in [0,100].
	QuotaPercent float64 `yaml:"quota_pct"`
}

// QuotaBitRate converts the slice quota to bit/s for a link of the given capacity.
func (s Slice) QuotaBitRate(capacity int64) int64 {
	return int64(float64(capacity) * s.QuotaPercent / 100)
}

// byPriority returns a copy of slices ordered by increasing priority.
// Equal priorities keep ascending ID order so arbitration is deterministic.
func byPriority(slices []Slice) []Slice {
	out := append([]Slice(nil), slices...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

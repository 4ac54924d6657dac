package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDecisions  int
	AdmittedCount   int
	BlockedCount    int
	InvertedCount   int            // admitted on a strategy alternative
	BlockReasons    map[string]int // reason → count
	ExtraGranted    int64          // Σ positive arbitration deltas, bit/s
	ExtraReclaimed  int64          // Σ |negative arbitration deltas|, bit/s
	MeterUpdates    int
	SliceAdmissions map[int]int // slice → admitted count
	SliceBlocks     map[int]int // slice → blocked count
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		BlockReasons:    make(map[string]int),
		SliceAdmissions: make(map[int]int),
		SliceBlocks:     make(map[int]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDecisions = len(st.Admissions)
	for _, a := range st.Admissions {
		if a.Admitted {
			summary.AdmittedCount++
			summary.SliceAdmissions[a.Slice]++
			if a.Inverted() {
				summary.InvertedCount++
			}
		} else {
			summary.BlockedCount++
			summary.SliceBlocks[a.Slice]++
			summary.BlockReasons[a.Reason]++
		}
	}

	for _, r := range st.Arbitrations {
		if r.Delta > 0 {
			summary.ExtraGranted += r.Delta
		} else {
			summary.ExtraReclaimed -= r.Delta
		}
	}
	summary.MeterUpdates = len(st.Meters)

	return summary
}

package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures admission decisions only.
	TraceLevelDecisions TraceLevel = "decisions"
	// TraceLevelAll also captures arbitration steps and meter updates.
	TraceLevelAll TraceLevel = "all"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	TraceLevelAll:       true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects decision records during a run.
type SimulationTrace struct {
	Config       TraceConfig
	Admissions   []AdmissionRecord
	Arbitrations []ArbitrationRecord
	Meters       []MeterRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:       config,
		Admissions:   make([]AdmissionRecord, 0),
		Arbitrations: make([]ArbitrationRecord, 0),
		Meters:       make([]MeterRecord, 0),
	}
}

// RecordAdmission appends an admission decision record.
func (st *SimulationTrace) RecordAdmission(record AdmissionRecord) {
	st.Admissions = append(st.Admissions, record)
}

// RecordArbitration appends an extra bandwidth adjustment. Dropped below TraceLevelAll.
func (st *SimulationTrace) RecordArbitration(record ArbitrationRecord) {
	if st.Config.Level != TraceLevelAll {
		return
	}
	st.Arbitrations = append(st.Arbitrations, record)
}

// RecordMeter appends a meter update. Dropped below TraceLevelAll.
func (st *SimulationTrace) RecordMeter(record MeterRecord) {
	if st.Config.Level != TraceLevelAll {
		return
	}
	st.Meters = append(st.Meters, record)
}

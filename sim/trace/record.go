// Package trace provides decision-trace recording for admission and arbitration analysis.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// AdmissionRecord captures a single bearer admission decision.
type AdmissionRecord struct {
	BearerID    uint64
	Clock       int64
	Slice       int
	GBR         bool
	Admitted    bool
	Reason      string    // block reason; empty when admitted
	Paths       [2]string // chosen path per interface
	Alternative int       // 0 = default paths, k = k-th strategy alternative, -1 = no reservation
}

// Inverted reports whether the bearer was admitted on a non-default path set.
func (r AdmissionRecord) Inverted() bool {
	return r.Admitted && r.Alternative > 0
}

// ArbitrationRecord captures one extra bandwidth step applied by the arbitrator.
type ArbitrationRecord struct {
	Clock     int64
	Link      int
	Direction string
	Slice     int
	Delta     int64 // bit/s; positive = granted, negative = reclaimed
}

// MeterRecord captures one meter rate programmed on the dataplane.
type MeterRecord struct {
	Clock     int64
	Link      int
	Direction string
	Slice     int
	Kbps      int64
}

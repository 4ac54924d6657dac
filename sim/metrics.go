// Tracks simulation-wide and per-slice admission and arbitration metrics.

package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SliceMetrics counts admission outcomes for one slice.
type SliceMetrics struct {
	Requested int `json:"requested"`
	Accepted  int `json:"accepted"`
	Blocked   int `json:"blocked"`
	GBR       int `json:"gbr_requests"`
	Inverted  int `json:"inverted_admissions"` // admitted on a strategy alternative
	Released  int `json:"released"`
}

// BlockRatio returns blocked/requested, or 0 when nothing was requested.
func (m *SliceMetrics) BlockRatio() float64 {
	if m.Requested == 0 {
		return 0
	}
	return float64(m.Blocked) / float64(m.Requested)
}

// LinkUsage is the final state of one slice on one link direction.
type LinkUsage struct {
	Link      LinkID    `json:"link"`
	Direction Direction `json:"-"`
	Dir       string    `json:"direction"`
	Slice     SliceID   `json:"slice"`
	Capacity  int64     `json:"capacity_bps"`
	Committed int64     `json:"committed_bps"`
	Extra     int64     `json:"extra_bps"`
	Usage     float64   `json:"usage_bps"`
}

// Metrics aggregates statistics about the simulation for final reporting.
type Metrics struct {
	Slices             map[SliceID]*SliceMetrics
	ArbitrationTicks   int
	ExtraGranted       int64 // Σ positive extra steps, bit/s
	ExtraReclaimed     int64 // Σ reclaimed extra steps, bit/s
	SkippedAdjustments int
	MeterUpdates       int
	SimEndedTime       int64
	Links              []LinkUsage
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{Slices: make(map[SliceID]*SliceMetrics)}
}

func (m *Metrics) slice(id SliceID) *SliceMetrics {
	sm, ok := m.Slices[id]
	if !ok {
		sm = &SliceMetrics{}
		m.Slices[id] = sm
	}
	return sm
}

// RecordDecision counts one admission decision.
func (m *Metrics) RecordDecision(slice SliceID, gbr bool, d Decision) {
	sm := m.slice(slice)
	sm.Requested++
	if gbr {
		sm.GBR++
	}
	if !d.Accepted {
		sm.Blocked++
		return
	}
	sm.Accepted++
	if d.Alternative > 0 {
		sm.Inverted++
	}
}

// RecordRelease counts one bearer release.
func (m *Metrics) RecordRelease(slice SliceID) {
	m.slice(slice).Released++
}

// RecordTick folds one arbitration report into the totals.
func (m *Metrics) RecordTick(r TickReport) {
	m.ArbitrationTicks++
	m.SkippedAdjustments += r.Skipped
	for _, a := range r.Adjustments {
		if a.Delta > 0 {
			m.ExtraGranted += a.Delta
		} else {
			m.ExtraReclaimed -= a.Delta
		}
	}
}

// CollectLinks snapshots every ledger of store.
func (m *Metrics) CollectLinks(store LinkLedgerStore) {
	m.Links = m.Links[:0]
	for _, link := range store.Links() {
		for _, dir := range Directions {
			ledger := link.Ledger(dir)
			for _, slice := range ledger.Slices() {
				m.Links = append(m.Links, LinkUsage{
					Link:      link.ID,
					Direction: dir,
					Dir:       dir.String(),
					Slice:     slice,
					Capacity:  ledger.Capacity(),
					Committed: ledger.Committed(slice),
					Extra:     ledger.Extra(slice),
					Usage:     ledger.Usage(slice),
				})
			}
		}
	}
}

func (m *Metrics) sliceIDs() []SliceID {
	ids := make([]SliceID, 0, len(m.Slices))
	for id := range m.Slices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Print displays aggregated metrics at the end of the simulation.
func (m *Metrics) Print() {
	fmt.Println("=== Simulation Metrics ===")
	fmt.Printf("Simulated Time       : %d ticks\n", m.SimEndedTime)
	for _, id := range m.sliceIDs() {
		sm := m.Slices[id]
		fmt.Printf("Slice %-3d            : requested=%d accepted=%d blocked=%d (%.2f%%) inverted=%d released=%d\n",
			id, sm.Requested, sm.Accepted, sm.Blocked, 100*sm.BlockRatio(), sm.Inverted, sm.Released)
	}
	fmt.Printf("Arbitration Ticks    : %d\n", m.ArbitrationTicks)
	fmt.Printf("Extra Granted        : %s\n", BitRate(m.ExtraGranted))
	fmt.Printf("Extra Reclaimed      : %s\n", BitRate(m.ExtraReclaimed))
	fmt.Printf("Skipped Adjustments  : %d\n", m.SkippedAdjustments)
	fmt.Printf("Meter Updates        : %d\n", m.MeterUpdates)
	for _, l := range m.Links {
		if l.Committed == 0 && l.Extra == 0 {
			continue
		}
		fmt.Printf("Link %d %-3s slice %-3d : committed %s, extra %s of %s\n",
			l.Link, l.Dir, l.Slice, BitRate(l.Committed), BitRate(l.Extra), BitRate(l.Capacity))
	}
}

// MetricsOutput is the JSON document written by SaveResults.
type MetricsOutput struct {
	RunID              string                    `json:"run_id"`
	SimEndedTime       int64                     `json:"sim_ended_time"`
	Slices             map[SliceID]*SliceMetrics `json:"slices"`
	ArbitrationTicks   int                       `json:"arbitration_ticks"`
	ExtraGranted       int64                     `json:"extra_granted_bps"`
	ExtraReclaimed     int64                     `json:"extra_reclaimed_bps"`
	SkippedAdjustments int                       `json:"skipped_adjustments"`
	MeterUpdates       int                       `json:"meter_updates"`
	Links              []LinkUsage               `json:"links"`
}

// Output builds the JSON document for this run, tagged with a fresh run id.
func (m *Metrics) Output() MetricsOutput {
	return MetricsOutput{
		RunID:              uuid.NewString(),
		SimEndedTime:       m.SimEndedTime,
		Slices:             m.Slices,
		ArbitrationTicks:   m.ArbitrationTicks,
		ExtraGranted:       m.ExtraGranted,
		ExtraReclaimed:     m.ExtraReclaimed,
		SkippedAdjustments: m.SkippedAdjustments,
		MeterUpdates:       m.MeterUpdates,
		Links:              m.Links,
	}
}

// SaveResults writes the metrics as indented JSON to path.
func (m *Metrics) SaveResults(path string) error {
	data, err := json.MarshalIndent(m.Output(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	logrus.Infof("results written to %s", path)
	return nil
}

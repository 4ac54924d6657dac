package controlplane

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ring-sim/ring-sim/sim"
)

const namespace = "ringsim"

type metrics struct {
	requests         *prometheus.CounterVec
	releases         *prometheus.CounterVec
	activeBearers    *prometheus.GaugeVec
	arbitrationTicks prometheus.Counter
	extraAdjustments *prometheus.CounterVec
	extra            *prometheus.GaugeVec
	meterUpdates     prometheus.Counter
	usageSamples     prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bearer_requests_total",
				Help:      "Bearer admission requests by slice and outcome.",
			},
			[]string{"slice", "outcome"},
		),
		releases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bearer_releases_total",
				Help:      "Admitted bearers released, by slice.",
			},
			[]string{"slice"},
		),
		activeBearers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_bearers",
				Help:      "Admitted bearers currently held, by slice.",
			},
			[]string{"slice"},
		),
		arbitrationTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "arbitration_ticks_total",
			Help:      "Slice arbitration rounds run.",
		}),
		extraAdjustments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extra_adjustments_total",
				Help:      "Extra bit rate adjustments applied by the arbitrator.",
			},
			[]string{"kind"},
		),
		extra: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "extra_bps",
				Help:      "Extra bit rate lent to a slice on a link direction.",
			},
			[]string{"link", "dir", "slice"},
		),
		meterUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meter_updates_total",
			Help:      "Slice meter programming commands issued.",
		}),
		usageSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_samples_total",
			Help:      "Usage sampling rounds run.",
		}),
	}
}

func (m *metrics) register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.requests, m.releases, m.activeBearers, m.arbitrationTicks,
		m.extraAdjustments, m.extra, m.meterUpdates, m.usageSamples,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func sliceLabel(id sim.SliceID) string {
	return strconv.Itoa(int(id))
}

func (m *metrics) recordDecision(slice sim.SliceID, d sim.Decision) {
	outcome := "accepted"
	if !d.Accepted {
		outcome = "blocked"
	}
	m.requests.WithLabelValues(sliceLabel(slice), outcome).Inc()
	if d.Accepted {
		m.activeBearers.WithLabelValues(sliceLabel(slice)).Inc()
	}
}

// dropActive removes a held bearer from the gauge before it is requested again.
func (m *metrics) dropActive(slice sim.SliceID) {
	m.activeBearers.WithLabelValues(sliceLabel(slice)).Dec()
}

func (m *metrics) recordRelease(slice sim.SliceID) {
	m.releases.WithLabelValues(sliceLabel(slice)).Inc()
	m.activeBearers.WithLabelValues(sliceLabel(slice)).Dec()
}

func (m *metrics) recordTick(store sim.LinkLedgerStore, r sim.TickReport) {
	for _, a := range r.Adjustments {
		extra := store.Ledger(a.Link, a.Dir).Extra(a.Slice)
		m.extra.WithLabelValues(strconv.Itoa(int(a.Link)), a.Dir.String(), sliceLabel(a.Slice)).Set(float64(extra))
		kind := "grant"
		if a.Delta < 0 {
			kind = "reclaim"
		}
		m.extraAdjustments.WithLabelValues(kind).Inc()
	}
	m.meterUpdates.Add(float64(len(r.MeterUpdates)))
	m.arbitrationTicks.Inc()
}

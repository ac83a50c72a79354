package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks admission outcomes and latency.
type Metrics struct {
	Admissions *prometheus.CounterVec
	Latency    prometheus.Histogram
}

// New creates and registers admission metrics.
func New() *Metrics {
	return &Metrics{
		Admissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "startline_admissions_total",
			Help: "Admission attempts by tagged outcome",
		}, []string{"outcome"}),
		Latency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "startline_admission_duration_ms",
			Help:    "End-to-end admission latency in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}),
	}
}

// RecordOutcome counts one admission ending with the given outcome.
func (m *Metrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Admissions.WithLabelValues(outcome).Inc()
}

// ObserveLatency records one admission round trip.
func (m *Metrics) ObserveLatency(ms float64) {
	if m == nil {
		return
	}
	m.Latency.Observe(ms)
}

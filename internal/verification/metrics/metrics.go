package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks federation webservice verification outcomes.
type Metrics struct {
	Checks          *prometheus.CounterVec
	ProviderLatency prometheus.Histogram
}

// New creates and registers verification metrics.
func New() *Metrics {
	return &Metrics{
		Checks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "startline_verification_checks_total",
			Help: "License verification attempts by terminal state",
		}, []string{"state"}),
		ProviderLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "startline_verification_provider_duration_ms",
			Help:    "Latency of federation webservice calls in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
	}
}

// RecordCheck counts one verification run ending in the given state.
func (m *Metrics) RecordCheck(state string) {
	if m == nil {
		return
	}
	m.Checks.WithLabelValues(state).Inc()
}

// ObserveProviderLatency records one webservice round trip.
func (m *Metrics) ObserveProviderLatency(ms float64) {
	if m == nil {
		return
	}
	m.ProviderLatency.Observe(ms)
}

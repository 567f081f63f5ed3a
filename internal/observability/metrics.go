package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mountain_conditions"

// Metrics holds the Prometheus collectors for source fetching and refreshes.
type Metrics struct {
	FetchAttempts   *prometheus.CounterVec   // labels: provider, outcome={ok,retry,unavailable,status}
	SourceResults   *prometheus.CounterVec   // labels: source, outcome={ok,error}
	RefreshDuration *prometheus.HistogramVec // labels: location
	RefreshFailures *prometheus.CounterVec   // labels: location
	PowderScore     *prometheus.GaugeVec     // labels: location
	StoredReports   prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Outbound HTTP attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		SourceResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_results_total",
			Help:      "Per-source results of location refreshes.",
		}, []string{"source", "outcome"}),
		RefreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a full location refresh.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"location"}),
		RefreshFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_failures_total",
			Help:      "Refreshes that produced no fresh conditions and kept the last good report.",
		}, []string{"location"}),
		PowderScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "powder_score",
			Help:      "Latest powder score per location.",
		}, []string{"location"}),
		StoredReports: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_reports",
			Help:      "Reports currently retained in the in-memory store.",
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchAttempts,
		m.SourceResults,
		m.RefreshDuration,
		m.RefreshFailures,
		m.PowderScore,
		m.StoredReports,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

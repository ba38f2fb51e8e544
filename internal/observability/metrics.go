package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wildfire_risk"

// Metrics holds the Prometheus collectors for the location report pipeline.
type Metrics struct {
	ReportRequests *prometheus.CounterVec   // labels: outcome={success,invalid,error}
	StageDuration  *prometheus.HistogramVec // labels: stage
	CacheLookups   *prometheus.CounterVec   // labels: kind, result={hit,miss}

	GeocodeAttempts   *prometheus.CounterVec // labels: outcome={success,retry,failure,empty}
	BaselineOutcomes  *prometheus.CounterVec // labels: catalog, outcome={found,none,error}
	UpstreamFailures  *prometheus.CounterVec // labels: upstream
	EventsPublished   *prometheus.CounterVec // labels: outcome={success,error}
	EngineReady       prometheus.Gauge
	PredictionLatency *prometheus.HistogramVec // labels: model
}

// NewMetrics creates and registers all metrics with the default registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.ReportRequests,
		m.StageDuration,
		m.CacheLookups,
		m.GeocodeAttempts,
		m.BaselineOutcomes,
		m.UpstreamFailures,
		m.EventsPublished,
		m.EngineReady,
		m.PredictionLatency,
	)
	return m
}

// NewMetricsForTesting creates unregistered collectors so tests can build as
// many instances as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		ReportRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_requests_total",
			Help:      help("Location report requests by outcome."),
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      help("Duration of each pipeline stage."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}, []string{"stage"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      help("Cache lookups by kind and result."),
		}, []string{"kind", "result"}),
		GeocodeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_attempts_total",
			Help:      help("Reverse geocoding attempts by outcome."),
		}, []string{"outcome"}),
		BaselineOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "baseline_outcomes_total",
			Help:      help("Historical baseline searches by catalog and outcome."),
		}, []string{"catalog", "outcome"}),
		UpstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_failures_total",
			Help:      help("Failed calls to external providers."),
		}, []string{"upstream"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      help("Report events written to Kafka by outcome."),
		}, []string{"outcome"}),
		EngineReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_ready",
			Help:      help("1 once the geospatial engine session is established."),
		}),
		PredictionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      help("ML prediction call duration by model."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"model"}),
	}
}

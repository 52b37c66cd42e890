package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wastewater_dashboard"

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard.
type Metrics struct {
	// Sheet fetching.
	FetchRequests *prometheus.CounterVec   // labels: source={viral_load,cases}, outcome={success,error}
	FetchDuration *prometheus.HistogramVec // labels: source

	// Normalization row outcomes.
	NormalizedRows *prometheus.CounterVec // labels: source, outcome={kept,dropped_date,dropped_filter,dropped_value,missing_reading}

	// Dashboard builds.
	Builds        *prometheus.CounterVec // labels: outcome={success,fetch_error,schema_error,error}
	BuildDuration prometheus.Histogram

	// Export cache.
	ExportCache       *prometheus.CounterVec // labels: result={hit,miss}
	ExportConversions prometheus.Counter

	// Record publishing.
	RecordsPublished prometheus.Counter
	PublishErrors    prometheus.Counter
	PublishEnabled   prometheus.Gauge
}

// NewMetrics creates and registers all dashboard metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchDuration,
		m.NormalizedRows,
		m.Builds,
		m.BuildDuration,
		m.ExportCache,
		m.ExportConversions,
		m.RecordsPublished,
		m.PublishErrors,
		m.PublishEnabled,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Sheet downloads by source and outcome, after retries.",
		}, []string{"source", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a single sheet download attempt.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		NormalizedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalized_rows_total",
			Help:      "Source rows by normalization outcome.",
		}, []string{"source", "outcome"}),
		Builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Dashboard builds by outcome.",
		}, []string{"outcome"}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of a complete fetch-normalize-filter-derive cycle.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		ExportCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_cache_total",
			Help:      "CSV export cache lookups by result.",
		}, []string{"result"}),
		ExportConversions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_conversions_total",
			Help:      "CSV exports serialized from scratch.",
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Normalized viral-load records written to Kafka.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed Kafka publish attempts.",
		}),
		PublishEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "publish_enabled",
			Help:      "1 when record publishing to Kafka is enabled, 0 otherwise.",
		}),
	}
}

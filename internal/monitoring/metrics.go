// internal/monitoring/metrics.go
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the extraction engine.
type Metrics struct {
	registry *prometheus.Registry

	// Fetch metrics
	FetchesTotal  *prometheus.CounterVec // labels: method, outcome
	FetchDuration *prometheus.HistogramVec

	// Extraction metrics
	FieldsExtracted  prometheus.Counter
	SelectorFailures prometheus.Counter

	// Job metrics
	JobsTotal     *prometheus.CounterVec // label: status
	JobsActive    prometheus.Gauge
	URLsProcessed *prometheus.CounterVec // label: outcome
	JobDuration   prometheus.Histogram
}

// New creates a metrics set registered on its own registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "leadharvest"
	}

	registry := prometheus.NewRegistry()
	factory := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}
	}

	m := &Metrics{
		registry: registry,
		FetchesTotal: prometheus.NewCounterVec(
			factory("fetches_total", "Page fetches by method and outcome"),
			[]string{"method", "outcome"},
		),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Page fetch duration by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		FieldsExtracted: prometheus.NewCounter(
			factory("fields_extracted_total", "Fields successfully extracted"),
		),
		SelectorFailures: prometheus.NewCounter(
			factory("selector_failures_total", "Per-field selector failures"),
		),
		JobsTotal: prometheus.NewCounterVec(
			factory("jobs_total", "Jobs reaching a terminal state, by status"),
			[]string{"status"},
		),
		JobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Jobs currently running",
		}),
		URLsProcessed: prometheus.NewCounterVec(
			factory("urls_processed_total", "URLs processed within jobs, by outcome"),
			[]string{"outcome"},
		),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "End-to-end job duration",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
	}

	registry.MustRegister(
		m.FetchesTotal, m.FetchDuration,
		m.FieldsExtracted, m.SelectorFailures,
		m.JobsTotal, m.JobsActive, m.URLsProcessed, m.JobDuration,
	)
	return m
}

// Handler returns an HTTP handler exposing the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

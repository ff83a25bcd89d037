// Package observability provides Prometheus metrics for the history service.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "history"

// Metrics holds the service collectors. It satisfies the observer interfaces
// of the query and ingestion use cases, the scheduler, the midgard client
// and the store adapters.
type Metrics struct {
	registry *prometheus.Registry

	// Ingestion
	IngestionPasses *prometheus.CounterVec
	PassDuration    *prometheus.HistogramVec
	RowsUpserted    *prometheus.CounterVec
	BackoffSeconds  prometheus.Gauge
	UpstreamLatency *prometheus.HistogramVec

	// Query
	QueryDuration *prometheus.HistogramVec
	SkippedRows   *prometheus.CounterVec
}

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		IngestionPasses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "passes_total",
			Help:      "Ingestion passes by outcome",
		}, []string{"outcome"}),
		PassDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "pass_duration_seconds",
			Help:      "Duration of ingestion passes",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"outcome"}),
		RowsUpserted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "rows_upserted_total",
			Help:      "Depth rows written, split by created or updated",
		}, []string{"result"}),
		BackoffSeconds: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "backoff_seconds",
			Help:      "Current retry delay of the scheduler, 0 when healthy",
		}),
		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Latency of upstream depth history requests",
			Buckets:   latencyBuckets,
		}, []string{"status"}),

		QueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Store query latency by result kind",
			Buckets:   latencyBuckets,
		}, []string{"kind", "status"}),
		SkippedRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "skipped_rows_total",
			Help:      "Rows dropped from results because they could not be decoded",
		}, []string{"store"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) PassFinished(outcome string, d time.Duration) {
	m.IngestionPasses.WithLabelValues(outcome).Inc()
	m.PassDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) BackoffChanged(d time.Duration) {
	m.BackoffSeconds.Set(d.Seconds())
}

func (m *Metrics) RowUpserted(created bool) {
	if created {
		m.RowsUpserted.WithLabelValues("created").Inc()
		return
	}
	m.RowsUpserted.WithLabelValues("updated").Inc()
}

func (m *Metrics) ObserveUpstream(d time.Duration, err error) {
	m.UpstreamLatency.WithLabelValues(status(err)).Observe(d.Seconds())
}

func (m *Metrics) ObserveQuery(kind string, d time.Duration, err error) {
	m.QueryDuration.WithLabelValues(kind, status(err)).Observe(d.Seconds())
}

func (m *Metrics) RowSkipped(store string) {
	m.SkippedRows.WithLabelValues(store).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

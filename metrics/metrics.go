// Package metrics defines the Prometheus metric collectors tracking
// indexing activity and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the indexing pipeline.
type Metrics struct {
	DocsIndexedTotal  prometheus.Counter
	DocsDeletedTotal  prometheus.Counter
	DocsSkippedTotal  prometheus.Counter
	IndexErrorsTotal  prometheus.Counter
	ReindexQueueDepth prometheus.Gauge
	FanoutSize        prometheus.Histogram
	ReindexLatency    prometheus.Histogram
}

// New creates the collectors and registers them on the default Prometheus
// registry. Call it once per process.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates the collectors and registers them on reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "graph_docs_indexed_total",
				Help: "Total documents submitted to the search engine.",
			},
		),
		DocsDeletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "graph_docs_deleted_total",
				Help: "Total documents dropped from the search engine.",
			},
		),
		DocsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "graph_docs_skipped_total",
				Help: "Total regenerated documents skipped because their fingerprint did not change.",
			},
		),
		IndexErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "graph_index_errors_total",
				Help: "Total errors while regenerating or submitting documents.",
			},
		),
		ReindexQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "graph_reindex_queue_depth",
				Help: "Number of nodes waiting in the reindex queue.",
			},
		),
		FanoutSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "graph_reindex_fanout_size",
				Help:    "Number of nodes made stale by one graph change.",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
			},
		),
		ReindexLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "graph_reindex_latency_seconds",
				Help:    "Time to regenerate and submit one document.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
		),
	}

	reg.MustRegister(
		m.DocsIndexedTotal,
		m.DocsDeletedTotal,
		m.DocsSkippedTotal,
		m.IndexErrorsTotal,
		m.ReindexQueueDepth,
		m.FanoutSize,
		m.ReindexLatency,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

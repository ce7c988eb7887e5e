package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the collaboration graph service.
// Metrics are organized by subsystem: runs, fetching, catalog requests,
// name resolution, and sinks. They are registered on the Registerer passed to
// NewMetrics so that each process (and each test) can own its registry.
type Metrics struct {
	// RunsCompleted counts pipeline runs that produced an edge list.
	RunsCompleted prometheus.Counter

	// RunsFailed counts pipeline runs that ended in an error.
	RunsFailed prometheus.Counter

	// RunDuration observes the end-to-end duration of runs in seconds.
	RunDuration prometheus.Histogram

	// InstitutionsProcessed counts roster institutions by outcome (ok, failed, skipped).
	InstitutionsProcessed *prometheus.CounterVec

	// PagesFetched counts work pages retrieved from the catalog.
	PagesFetched prometheus.Counter

	// WorksFetched counts works retrieved from the catalog.
	WorksFetched prometheus.Counter

	// PairsEmitted counts collaboration pairs produced by extraction.
	PairsEmitted prometheus.Counter

	// FetchFailures counts institutions whose work fetch failed.
	FetchFailures prometheus.Counter

	// EdgesInGraph is the edge count of the last finalized graph.
	EdgesInGraph prometheus.Gauge

	// CatalogRequestsTotal counts HTTP requests to the catalog, labeled by endpoint.
	CatalogRequestsTotal *prometheus.CounterVec

	// CatalogRequestsFailed counts failed catalog requests, labeled by endpoint and error type.
	CatalogRequestsFailed *prometheus.CounterVec

	// CatalogRequestDuration observes catalog request duration in seconds.
	CatalogRequestDuration *prometheus.HistogramVec

	// Resolutions counts roster name lookups by outcome (matched, no_match, error, cached).
	Resolutions *prometheus.CounterVec

	// EdgesWritten counts edges written, labeled by sink.
	EdgesWritten *prometheus.CounterVec

	// SinkFailures counts failed sink writes, labeled by sink.
	SinkFailures *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered on reg.
// The namespace is used as a prefix for all metric names.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Runs
		RunsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of graph build runs completed",
		}),
		RunsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_failed_total",
			Help:      "Total number of graph build runs that failed",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of graph build runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		InstitutionsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "institutions_processed_total",
			Help:      "Total number of roster institutions processed by status",
		}, []string{"status"}),

		// Fetching
		PagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Total number of work pages fetched",
		}),
		WorksFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "works_fetched_total",
			Help:      "Total number of works fetched",
		}),
		PairsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_emitted_total",
			Help:      "Total number of collaboration pairs extracted",
		}),
		FetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Total number of institution work fetches that failed",
		}),
		EdgesInGraph: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_edges",
			Help:      "Number of edges in the last finalized graph",
		}),

		// Catalog
		CatalogRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_total",
			Help:      "Total number of requests to the catalog API",
		}, []string{"endpoint"}),
		CatalogRequestsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_failed_total",
			Help:      "Total number of failed requests to the catalog API",
		}, []string{"endpoint", "error_type"}),
		CatalogRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_request_duration_seconds",
			Help:      "Duration of requests to the catalog API in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),

		// Resolution
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Total number of roster name resolutions by outcome",
		}, []string{"outcome"}),

		// Sinks
		EdgesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_written_total",
			Help:      "Total number of edges written by sink",
		}, []string{"sink"}),
		SinkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_failures_total",
			Help:      "Total number of failed sink writes",
		}, []string{"sink"}),
	}
}

// RecordRunCompleted records a successful run and its edge count.
func (m *Metrics) RecordRunCompleted(durationSeconds float64, edges int) {
	m.RunsCompleted.Inc()
	m.RunDuration.Observe(durationSeconds)
	m.EdgesInGraph.Set(float64(edges))
}

// RecordRunFailed records a failed run.
func (m *Metrics) RecordRunFailed(durationSeconds float64) {
	m.RunsFailed.Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordInstitution records the outcome of one roster institution.
func (m *Metrics) RecordInstitution(status string) {
	m.InstitutionsProcessed.WithLabelValues(status).Inc()
}

// RecordPage records one fetched page and the works it carried.
func (m *Metrics) RecordPage(works int) {
	m.PagesFetched.Inc()
	m.WorksFetched.Add(float64(works))
}

// RecordPairs records extracted collaboration pairs.
func (m *Metrics) RecordPairs(count int) {
	m.PairsEmitted.Add(float64(count))
}

// RecordFetchFailure records a failed institution fetch.
func (m *Metrics) RecordFetchFailure() {
	m.FetchFailures.Inc()
}

// RecordCatalogRequest records a completed catalog request.
func (m *Metrics) RecordCatalogRequest(endpoint string, durationSeconds float64) {
	m.CatalogRequestsTotal.WithLabelValues(endpoint).Inc()
	m.CatalogRequestDuration.WithLabelValues(endpoint).Observe(durationSeconds)
}

// RecordCatalogRequestFailed records a failed catalog request.
func (m *Metrics) RecordCatalogRequestFailed(endpoint, errorType string) {
	m.CatalogRequestsFailed.WithLabelValues(endpoint, errorType).Inc()
}

// RecordResolution records the outcome of a roster name lookup.
func (m *Metrics) RecordResolution(outcome string) {
	m.Resolutions.WithLabelValues(outcome).Inc()
}

// RecordEdgesWritten records edges written by a sink.
func (m *Metrics) RecordEdgesWritten(sink string, count int) {
	m.EdgesWritten.WithLabelValues(sink).Add(float64(count))
}

// RecordSinkFailure records a failed sink write.
func (m *Metrics) RecordSinkFailure(sink string) {
	m.SinkFailures.WithLabelValues(sink).Inc()
}

// WriteTextfile dumps every metric gathered by g to path in the Prometheus
// text exposition format, for node_exporter's textfile collector.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

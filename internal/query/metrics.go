// Package query — metrics.go registers the Prometheus metrics for the
// retrieval orchestrator.
package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// queryMetrics holds all Prometheus metrics owned by the orchestrator.
// A single instance is created in NewService and stored on Service so that
// tests can inject a fresh prometheus.Registry without polluting the default
// one.
type queryMetrics struct {
	// queriesTotal counts completed queries, partitioned by outcome: "ok" or
	// the name of the stage that failed ("embedding", "searching").
	queriesTotal *prometheus.CounterVec

	// durationSeconds records end-to-end query latency, partitioned the same
	// way as queriesTotal.
	durationSeconds *prometheus.HistogramVec

	// documentsRetrieved records how many documents each search returned
	// after threshold filtering.
	documentsRetrieved prometheus.Histogram
}

// newQueryMetrics registers all orchestrator metrics against reg. The
// registry is injected so unit tests stay hermetic.
func newQueryMetrics(reg prometheus.Registerer) *queryMetrics {
	factory := promauto.With(reg)

	return &queryMetrics{
		queriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kbq",
			Subsystem: "query",
			Name:      "total",
			Help:      "Total number of queries processed, partitioned by outcome.",
		}, []string{"outcome"}),

		durationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kbq",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "End-to-end query latency from receipt to logged outcome.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),

		documentsRetrieved: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kbq",
			Subsystem: "query",
			Name:      "documents_retrieved",
			Help:      "Number of documents returned per search after score filtering.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
	}
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Archive-API Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "archive_api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "archive_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	// Import runs by outcome
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "archive_api",
			Name:      "imports_total",
			Help:      "Total archive import runs",
		},
		[]string{"status"},
	)

	ImportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "archive_api",
			Name:      "import_duration_seconds",
			Help:      "Archive import duration in seconds",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	// Records upserted, split into loaded/duplicate/skipped
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "archive_api",
			Name:      "records_total",
			Help:      "Total records processed by the loader",
		},
		[]string{"kind", "result"},
	)

	// Archive store operations
	ArchiveStoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "archive_api",
			Name:      "archive_store_operations_total",
			Help:      "Total archive store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	ArchiveStoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "archive_api",
			Name:      "archive_store_duration_seconds",
			Help:      "Archive store operation duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 15},
		},
		[]string{"backend", "operation"},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordImport records the outcome of one archive run
func RecordImport(status string, durationSec float64) {
	ImportsTotal.WithLabelValues(status).Inc()
	ImportDuration.Observe(durationSec)
}

// RecordLoad adds the per-kind counts of one payload
func RecordLoad(kind string, loaded, duplicates, skipped int) {
	RecordsTotal.WithLabelValues(kind, "loaded").Add(float64(loaded))
	RecordsTotal.WithLabelValues(kind, "duplicate").Add(float64(duplicates))
	if skipped > 0 {
		RecordsTotal.WithLabelValues(kind, "skipped").Add(float64(skipped))
	}
}

// RecordArchiveStoreOperation records an archive store call
func RecordArchiveStoreOperation(backend, operation, status string, durationSec float64) {
	ArchiveStoreOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	ArchiveStoreDuration.WithLabelValues(backend, operation).Observe(durationSec)
}

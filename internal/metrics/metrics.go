package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request latency (seconds)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "board_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// Board mutations by operation and outcome
	MutationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_mutations_total",
			Help: "Total number of board mutations",
		},
		[]string{"operation", "outcome"}, // outcome: ok, invalid, not_found, failed
	)

	// Store write latency (seconds)
	StoreWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "board_store_write_duration_seconds",
			Help:    "Duration of committed store writes in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"operation"},
	)

	// Issues returned by the most recent board view, per column
	BoardColumnIssues = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "board_column_issues",
			Help: "Number of issues per column as of the last board view",
		},
		[]string{"status"},
	)
)

// RecordHTTPRequestDuration records the latency of one HTTP request.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordMutation counts one mutation attempt and, when it reached the store, its latency.
func RecordMutation(operation, outcome string, duration time.Duration) {
	MutationCount.WithLabelValues(operation, outcome).Inc()
	if outcome == "ok" || outcome == "failed" {
		StoreWriteDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// SetColumnIssues records the total issue count for a column.
func SetColumnIssues(status string, n int) {
	BoardColumnIssues.WithLabelValues(status).Set(float64(n))
}

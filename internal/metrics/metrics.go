// Package metrics exposes Prometheus instrumentation for the Bling access
// layer, the sync cycles and the admin HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream API
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bling_upstream_requests_total",
			Help: "Total number of requests sent through the throttled transport",
		},
		[]string{"status"}, // HTTP status code or "error"
	)

	UpstreamRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bling_upstream_request_duration_seconds",
			Help:    "Duration of upstream HTTP calls, excluding throttle wait",
			Buckets: prometheus.DefBuckets,
		},
	)

	ThrottleWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bling_throttle_wait_seconds",
			Help:    "Time spent waiting for the request interval gate",
			Buckets: []float64{0, 0.1, 0.5, 1, 2, 3, 4, 5, 10},
		},
	)

	// Token cache
	TokenCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bling_token_cache_hits_total",
			Help: "Token lookups served from cache",
		},
	)

	TokenFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bling_token_fetches_total",
			Help: "Token fetches against the auth endpoint",
		},
		[]string{"result"}, // success, failure
	)

	// Sync
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bling_sync_runs_total",
			Help: "Entity sync runs by outcome",
		},
		[]string{"entity", "outcome"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bling_sync_duration_seconds",
			Help:    "Duration of entity syncs",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 900, 1800},
		},
		[]string{"entity"},
	)

	SyncRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bling_sync_records",
			Help: "Records written by the last successful sync",
		},
		[]string{"entity"},
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bling_sync_last_success_timestamp",
			Help: "Unix timestamp of the last successful sync",
		},
		[]string{"entity"},
	)

	CoercionIssuesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bling_coercion_issues_total",
			Help: "Receivable values stored as null after failed coercion",
		},
		[]string{"field"},
	)

	// Admin API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of admin API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Admin API request latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordUpstreamRequest records one upstream call; status 0 means transport error.
func RecordUpstreamRequest(status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	UpstreamRequestsTotal.WithLabelValues(label).Inc()
	UpstreamRequestDuration.Observe(duration.Seconds())
}

// RecordThrottleWait records time spent at the interval gate.
func RecordThrottleWait(wait time.Duration) {
	ThrottleWaitSeconds.Observe(wait.Seconds())
}

// RecordTokenFetch records an auth endpoint call.
func RecordTokenFetch(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	TokenFetchesTotal.WithLabelValues(result).Inc()
}

// RecordSync records a finished entity sync.
func RecordSync(entity, outcome string, records int, duration time.Duration, finished time.Time) {
	SyncRunsTotal.WithLabelValues(entity, outcome).Inc()
	SyncDuration.WithLabelValues(entity).Observe(duration.Seconds())
	if outcome == "synced" {
		SyncRecords.WithLabelValues(entity).Set(float64(records))
		SyncLastSuccess.WithLabelValues(entity).Set(float64(finished.Unix()))
	}
}

// RecordAPIRequest records an admin API request.
func RecordAPIRequest(method, endpoint, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Package metrics exposes Prometheus collectors for the resolver service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Backend query results.
const (
	ResultFound    = "found"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

var (
	backendQueriesTotal        *prometheus.CounterVec
	backendQueryDuration       *prometheus.HistogramVec
	outcomesTotal              *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		backendQueriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "urlfinder_backend_queries_total",
				Help: "Total number of search backend queries, labeled by engine and result.",
			},
			[]string{"engine", "result"},
		)

		backendQueryDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "urlfinder_backend_query_duration_seconds",
				Help:    "Histogram of search backend query latencies, labeled by engine.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"engine"},
		)

		outcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "urlfinder_outcomes_total",
				Help: "Total number of resolution outcomes, labeled by status.",
			},
			[]string{"status"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "urlfinder_active_workers",
				Help: "Number of executor workers currently resolving a candidate.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "urlfinder_rate_limit_delays_seconds",
				Help:    "Histogram of per-engine throttle wait durations.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"engine"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveBackendQuery records one backend query and its latency.
func ObserveBackendQuery(engine, result string, duration time.Duration) {
	Init()
	backendQueriesTotal.WithLabelValues(engine, result).Inc()
	backendQueryDuration.WithLabelValues(engine).Observe(duration.Seconds())
}

// ObserveOutcome increments the outcome counter for the given status.
func ObserveOutcome(status string) {
	Init()
	outcomesTotal.WithLabelValues(status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a throttle wait.
func ObserveRateLimitDelay(engine string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(engine).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

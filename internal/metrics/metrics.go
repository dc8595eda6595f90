// Package metrics declares the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Upstream metrics
	UpstreamCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockdash_upstream_calls_total",
			Help: "Total number of upstream price service calls",
		},
		[]string{"source", "op", "status"}, // status: HTTP code, "error" or "ok"
	)

	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stockdash_upstream_latency_seconds",
			Help:    "Upstream price service latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"source", "op"},
	)

	// Cache metrics
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockdash_cache_lookups_total",
			Help: "Price cache lookups by kind and result",
		},
		[]string{"kind", "result"}, // kind: stocks|history; result: hit|miss|shared
	)

	// Correlation metrics
	MatrixComputations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockdash_matrix_computations_total",
			Help: "Correlation matrices computed",
		},
		[]string{"origin"}, // origin: view|api|grpc|recorder
	)

	UndefinedCoefficients = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stockdash_undefined_coefficients_total",
			Help: "Coefficient pairs that were not finite and rendered as undefined",
		},
	)

	// View metrics
	StaleResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockdash_stale_responses_total",
			Help: "View refresh results discarded because a newer refresh started",
		},
		[]string{"view"},
	)

	WebSocketSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stockdash_websocket_sessions",
			Help: "Open WebSocket view sessions",
		},
	)

	// Recorder metrics
	SnapshotsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockdash_snapshots_total",
			Help: "Recorder runs by outcome",
		},
		[]string{"result"}, // result: stored|duplicate|error
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(UpstreamCalls)
		prometheus.MustRegister(UpstreamLatency)
		prometheus.MustRegister(CacheLookups)
		prometheus.MustRegister(MatrixComputations)
		prometheus.MustRegister(UndefinedCoefficients)
		prometheus.MustRegister(StaleResponses)
		prometheus.MustRegister(WebSocketSessions)
		prometheus.MustRegister(SnapshotsRecorded)
	})
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveUpstream records one upstream call.
func ObserveUpstream(source, op, status string, start time.Time) {
	UpstreamCalls.WithLabelValues(source, op, status).Inc()
	UpstreamLatency.WithLabelValues(source, op).Observe(time.Since(start).Seconds())
}

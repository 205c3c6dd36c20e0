// Package metrics provides Prometheus instrumentation for the A2A server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

var (
	// RequestsTotal counts routed JSON-RPC requests by method and outcome.
	// Outcome is "ok" or the symbolic error-code name.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "a2a",
			Name:      "requests_total",
			Help:      "Total routed JSON-RPC requests by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	// RequestDuration observes dispatch latency by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "a2a",
			Name:      "request_duration_seconds",
			Help:      "JSON-RPC dispatch duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// RateLimitedTotal counts requests rejected by the rate limiter.
	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "a2a",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the per-agent rate limiter.",
		},
	)

	// ActiveConnections tracks authenticated agent sessions.
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "a2a",
			Name:      "active_connections",
			Help:      "Number of currently registered agent connections.",
		},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "a2a",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// PaymentsCreatedTotal counts x402 payment requests created.
	PaymentsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "a2a",
			Name:      "payments_created_total",
			Help:      "Total x402 payment requests created.",
		},
	)

	// PaymentsVerifiedTotal counts successfully verified payments.
	PaymentsVerifiedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "a2a",
			Name:      "payments_verified_total",
			Help:      "Total x402 payments verified on-chain.",
		},
	)

	// PaymentsExpiredTotal counts payment requests swept after expiry.
	PaymentsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "a2a",
			Name:      "payments_expired_total",
			Help:      "Total x402 payment requests removed by the expiry sweep.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RateLimitedTotal,
		ActiveConnections,
		ActiveWebSocketClients,
		PaymentsCreatedTotal,
		PaymentsVerifiedTotal,
		PaymentsExpiredTotal,
	)
}

// Handler returns the Prometheus metrics endpoint handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

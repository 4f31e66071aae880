package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// APIMetrics records HTTP handler activity of the lending service.
type APIMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
	sockets   prometheus.Gauge
}

var (
	apiMetricsOnce sync.Once
	apiRegistry    *APIMetrics
)

// API returns the lazily registered HTTP metrics.
func API() *APIMetrics {
	apiMetricsOnce.Do(func() {
		apiRegistry = &APIMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "memelend",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route pattern, outcome and status.",
			}, []string{"route", "outcome", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "memelend",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Handler latency by route pattern.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "memelend",
				Subsystem: "http",
				Name:      "throttles_total",
				Help:      "Requests rejected by the rate limiter.",
			}, []string{"reason"}),
			sockets: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "memelend",
				Subsystem: "http",
				Name:      "event_subscribers",
				Help:      "Open websocket event subscriptions.",
			}),
		}
		prometheus.MustRegister(
			apiRegistry.requests,
			apiRegistry.latency,
			apiRegistry.throttles,
			apiRegistry.sockets,
		)
	})
	return apiRegistry
}

// Observe records the outcome of one request. status is the HTTP status
// written to the client.
func (m *APIMetrics) Observe(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(route, outcome, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordThrottle counts a rejected request. Reasons should be stable strings
// such as "rate_limit".
func (m *APIMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

func (m *APIMetrics) SubscriberOpened() {
	if m == nil {
		return
	}
	m.sockets.Inc()
}

func (m *APIMetrics) SubscriberClosed() {
	if m == nil {
		return
	}
	m.sockets.Dec()
}

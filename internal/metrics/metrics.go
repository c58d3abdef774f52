// Package metrics exposes Prometheus instrumentation for the forum server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors registered by the server.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RateLimitHits    *prometheus.CounterVec
	SecurityEvents   *prometheus.CounterVec
	BlockedIPs       prometheus.Counter
	ActiveSessions   prometheus.Gauge
	LoginAttempts    *prometheus.CounterVec
	EventsPurged     prometheus.Counter
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_http_requests_total",
			Help: "Total HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "palisade_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RateLimitHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter, by limiter name.",
		}, []string{"limiter"}),
		SecurityEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_security_events_total",
			Help: "Audit events recorded, by event type and severity.",
		}, []string{"type", "severity"}),
		BlockedIPs: factory.NewCounter(prometheus.CounterOpts{
			Name: "palisade_banned_ip_rejections_total",
			Help: "Requests rejected because the client IP is banned.",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "palisade_active_sessions",
			Help: "Number of live sessions in the session store.",
		}),
		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_login_attempts_total",
			Help: "Login attempts by outcome (success, failure, locked, banned).",
		}, []string{"outcome"}),
		EventsPurged: factory.NewCounter(prometheus.CounterOpts{
			Name: "palisade_siem_events_purged_total",
			Help: "Audit events removed by retention sweeps.",
		}),
	}
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

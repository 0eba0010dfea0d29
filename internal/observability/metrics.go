package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/upb/siamonitor/oidc"
)

const namespace = "siamonitor"

// Metrics holds the service's collectors. It satisfies the oidc observer
// interfaces.
type Metrics struct {
	registry *prometheus.Registry

	tokenVerifications *prometheus.CounterVec
	keySetRefreshes    *prometheus.CounterVec
	keySetRefreshTime  prometheus.Histogram
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		tokenVerifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_verifications_total",
				Help:      "Total number of bearer token verifications by result",
			},
			[]string{"result"},
		),

		keySetRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jwks_refreshes_total",
				Help:      "Total number of signing key set fetches by result",
			},
			[]string{"result"},
		),

		keySetRefreshTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "jwks_refresh_duration_seconds",
				Help:      "Signing key set fetch latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
		),

		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),

		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.tokenVerifications,
		m.keySetRefreshes,
		m.keySetRefreshTime,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// RegisterDB exposes connection pool statistics for db
func (m *Metrics) RegisterDB(db *sql.DB, name string) error {
	return m.registry.Register(collectors.NewDBStatsCollector(db, name))
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          m.registry,
	})
}

// ObserveVerification records a token verification outcome
func (m *Metrics) ObserveVerification(err error) {
	m.tokenVerifications.WithLabelValues(oidc.Kind(err)).Inc()
}

// ObserveKeySetRefresh records a key set fetch
func (m *Metrics) ObserveKeySetRefresh(err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.keySetRefreshes.WithLabelValues(result).Inc()
	m.keySetRefreshTime.Observe(duration.Seconds())
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(route, method string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

var (
	_ oidc.VerificationObserver = (*Metrics)(nil)
	_ oidc.RefreshObserver      = (*Metrics)(nil)
)

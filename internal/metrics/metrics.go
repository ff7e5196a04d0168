package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"tenant-platform/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. It implements rbac.Observer.
type Metrics struct {
	AccessDecisionsTotal    *prometheus.CounterVec
	AccessStoreErrorsTotal  prometheus.Counter
	AccessCacheLookupsTotal *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AccessDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "access_decisions_total",
				Help: "Authorization decisions by action class and outcome",
			},
			[]string{"action", "decision"},
		),
		AccessStoreErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "access_store_errors_total",
				Help: "Membership lookups that failed and were denied",
			},
		),
		AccessCacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "access_cache_lookups_total",
				Help: "Membership cache lookups by result",
			},
			[]string{"result"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(
		m.AccessDecisionsTotal,
		m.AccessStoreErrorsTotal,
		m.AccessCacheLookupsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

func (m *Metrics) ObserveDecision(ctx context.Context, r rbac.Result, err error) {
	reason := r.Decision.String()
	switch {
	case errors.Is(err, rbac.ErrStoreUnavailable):
		m.AccessStoreErrorsTotal.Inc()
		reason = "error"
	case errors.Is(err, rbac.ErrMalformedIdentifier):
		reason = "malformed"
	}
	m.AccessDecisionsTotal.WithLabelValues(r.Action.String(), reason).Inc()
}

func (m *Metrics) ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.AccessCacheLookupsTotal.WithLabelValues(result).Inc()
}

// Middleware records request counts and latency keyed by the matched route template,
// so ids in the path do not create new series.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

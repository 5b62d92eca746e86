// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	cacheRequests   *prometheus.CounterVec
	eventsPublished prometheus.Counter
}

// New registers the collectors with registry
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "imuhira_http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imuhira_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		cacheRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "imuhira_debate_cache_requests_total",
			Help: "Public debate cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
		eventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "imuhira_debate_events_published_total",
			Help: "Debate events published to the live feed",
		}),
	}
}

func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.cacheRequests.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.cacheRequests.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) CacheError() {
	if m != nil {
		m.cacheRequests.WithLabelValues("error").Inc()
	}
}

func (m *Metrics) EventPublished() {
	if m != nil {
		m.eventsPublished.Inc()
	}
}

package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "origin"

// Metrics owns the Prometheus collectors exported on /metrics. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	requestDuration  *prometheus.HistogramVec
	generations      *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	rateLimitDenials *prometheus.CounterVec
	persistFailures  *prometheus.CounterVec
}

// NewMetrics registers the service collectors on a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		generations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "certificate_generations_total",
			Help:      "Certificate generation attempts by outcome",
		}, []string{"outcome"}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fallbacks_total",
			Help:      "Fallback source usage by component",
		}, []string{"component", "source"}),
		rateLimitDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ratelimit_denials_total",
			Help:      "Requests rejected by the rate limiter",
		}, []string{"scope"}),
		persistFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "artifact_persist_failures_total",
			Help:      "Best-effort artifact persistence failures",
		}, []string{"artifact"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, latency time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(latency.Seconds())
}

// GenerationOutcome counts a generation result such as "success" or "rate_limited".
func (m *Metrics) GenerationOutcome(outcome string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(outcome).Inc()
}

// FallbackUsed counts a fallback source chosen by a component.
func (m *Metrics) FallbackUsed(component, source string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(component, source).Inc()
}

// RateLimitDenied counts a rejected request for the given limiter scope.
func (m *Metrics) RateLimitDenied(scope string) {
	if m == nil {
		return
	}
	m.rateLimitDenials.WithLabelValues(scope).Inc()
}

// PersistFailed counts a swallowed artifact persistence failure.
func (m *Metrics) PersistFailed(artifact string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(artifact).Inc()
}

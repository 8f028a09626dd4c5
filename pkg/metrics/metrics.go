package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the risk service
// ⭐ SSOT: 메트릭 이름/라벨은 여기서만 정의
// nil *Metrics의 모든 메서드는 no-op (METRICS_ENABLED=false)
type Metrics struct {
	registry *prometheus.Registry
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
	breaches *prometheus.CounterVec
	cache    *prometheus.CounterVec
}

// 캐시 결과 라벨
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// New creates collectors on a dedicated registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "risk_computation_duration_seconds",
			Help:    "Duration of risk computations by operation.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_computation_errors_total",
			Help: "Failed risk computations by operation and error kind.",
		}, []string{"operation", "kind"}),
		breaches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_limit_breaches_total",
			Help: "Risk limit breaches detected by metric.",
		}, []string{"metric"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_marketdata_cache_total",
			Help: "Market data cache lookups by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.duration,
		m.errors,
		m.breaches,
		m.cache,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry for /metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveDuration records time elapsed since start
func (m *Metrics) ObserveDuration(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordError counts a failed computation
func (m *Metrics) RecordError(operation, kind string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(operation, kind).Inc()
}

// RecordBreach counts a limit breach
func (m *Metrics) RecordBreach(metric string) {
	if m == nil {
		return
	}
	m.breaches.WithLabelValues(metric).Inc()
}

// RecordCache counts a cache lookup result (hit, miss, error)
func (m *Metrics) RecordCache(result string) {
	if m == nil {
		return
	}
	m.cache.WithLabelValues(result).Inc()
}

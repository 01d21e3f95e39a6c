package metrics

import (
	"net/http"

	"github.com/asakaida/kanmon/internal/services/authorization"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exports metrics to Prometheus format.
// It implements authorization.DecisionObserver and the cached registry observer.
type PrometheusExporter struct {
	collector *Collector
	gatherer  prometheus.Gatherer

	// Prometheus metrics
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheHitRate   prometheus.Gauge
	cacheKeys      prometheus.Gauge
	cacheEvictions prometheus.Gauge
	gateDecisions  *prometheus.CounterVec
	grpcRequests   *prometheus.CounterVec
	grpcDuration   *prometheus.HistogramVec
	grpcErrors     *prometheus.CounterVec
}

// NewPrometheusExporter creates a new Prometheus exporter registering its
// metrics in reg. Tests pass a fresh registry per exporter.
func NewPrometheusExporter(collector *Collector, reg *prometheus.Registry) *PrometheusExporter {
	factory := promauto.With(reg)

	return &PrometheusExporter{
		collector: collector,
		gatherer:  reg,
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "kanmon_permission_cache_hits_total",
			Help: "Total number of permission registry lookups served from cache",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "kanmon_permission_cache_misses_total",
			Help: "Total number of permission registry lookups that missed the cache",
		}),
		cacheHitRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kanmon_permission_cache_hit_rate",
			Help: "Current cache hit rate (0.0 to 1.0)",
		}),
		cacheKeys: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kanmon_permission_cache_keys_current",
			Help: "Current number of keys in the in-process permission cache",
		}),
		cacheEvictions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kanmon_permission_cache_evictions",
			Help: "Number of entries evicted from the in-process permission cache",
		}),
		gateDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kanmon_gate_decisions_total",
				Help: "Total number of authorization gate decisions",
			},
			[]string{"decision"},
		),
		grpcRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kanmon_grpc_requests_total",
				Help: "Total number of gRPC requests",
			},
			[]string{"method"},
		),
		grpcDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kanmon_grpc_request_duration_seconds",
				Help:    "Duration of gRPC requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
			[]string{"method"},
		),
		grpcErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kanmon_grpc_errors_total",
				Help: "Total number of gRPC errors",
			},
			[]string{"method"},
		),
	}
}

// Update updates Gauge metrics from the collector.
// Counters are updated via interceptor, so only update gauges here.
// This should be called periodically (e.g., every 10 seconds).
func (e *PrometheusExporter) Update() {
	cacheMetrics := e.collector.GetCacheMetrics()
	e.cacheHitRate.Set(cacheMetrics.HitRate)
	e.cacheKeys.Set(float64(cacheMetrics.KeysCurrent))
	e.cacheEvictions.Set(float64(cacheMetrics.Evictions))
}

// Handler serves the registry in the Prometheus text format.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.gatherer, promhttp.HandlerOpts{})
}

// RecordRequest records a request in Prometheus.
func (e *PrometheusExporter) RecordRequest(method string) {
	e.grpcRequests.WithLabelValues(method).Inc()
}

// RecordDuration records a duration in Prometheus.
func (e *PrometheusExporter) RecordDuration(method string, durationSeconds float64) {
	e.grpcDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordError records an error in Prometheus.
func (e *PrometheusExporter) RecordError(method string) {
	e.grpcErrors.WithLabelValues(method).Inc()
}

// ObserveDecision records a gate decision.
// Operation names are not used as labels to keep cardinality bounded.
func (e *PrometheusExporter) ObserveDecision(operation string, d authorization.Decision) {
	e.gateDecisions.WithLabelValues(d.String()).Inc()
	e.collector.RecordDecision(d)
}

// RecordCacheHit records a cache hit.
func (e *PrometheusExporter) RecordCacheHit() {
	e.cacheHits.Inc()
}

// RecordCacheMiss records a cache miss.
func (e *PrometheusExporter) RecordCacheMiss() {
	e.cacheMisses.Inc()
}

// Package metrics provides HTTP handler metrics for observability
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// HTTPMetrics contains Prometheus metrics for HTTP API operations
type HTTPMetrics struct {
	registry *prometheus.Registry

	// HTTP request metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec

	// Cache metrics for the API response cache
	cacheOperationsTotal *prometheus.CounterVec

	// State gauges
	activeRequestsGauge prometheus.Gauge

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewHTTPMetrics creates and registers new HTTP handler metrics
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *HTTPMetrics) initMetrics() error {
	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"method", "path"},
	)

	m.responseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		},
		[]string{"method", "path"},
	)

	m.cacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_cache_operations_total",
			Help: "Total number of API response cache lookups by result",
		},
		[]string{"result"},
	)

	m.activeRequestsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	m.collectors = []prometheus.Collector{
		m.requestsTotal,
		m.requestDuration,
		m.responseSize,
		m.cacheOperationsTotal,
		m.activeRequestsGauge,
	}

	return nil
}

// Describe implements the Collector interface
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordRequest records a served HTTP request. The path label should be the
// route pattern, not the raw URL, to keep label cardinality bounded.
func (m *HTTPMetrics) RecordRequest(method, path string, status int, durationSeconds, responseBytes float64) {
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(durationSeconds)
	if responseBytes > 0 {
		m.responseSize.WithLabelValues(method, path).Observe(responseBytes)
	}
}

// RecordCacheHit records an API response cache hit
func (m *HTTPMetrics) RecordCacheHit() {
	m.cacheOperationsTotal.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records an API response cache miss
func (m *HTTPMetrics) RecordCacheMiss() {
	m.cacheOperationsTotal.WithLabelValues("miss").Inc()
}

// IncActiveRequests increments the in-flight request gauge
func (m *HTTPMetrics) IncActiveRequests() {
	m.activeRequestsGauge.Inc()
}

// DecActiveRequests decrements the in-flight request gauge
func (m *HTTPMetrics) DecActiveRequests() {
	m.activeRequestsGauge.Dec()
}

// GetActiveRequests returns the current number of in-flight requests
func (m *HTTPMetrics) GetActiveRequests() float64 {
	metric := &dto.Metric{}
	if err := m.activeRequestsGauge.Write(metric); err != nil {
		return 0
	}
	if metric.Gauge != nil && metric.Gauge.Value != nil {
		return *metric.Gauge.Value
	}
	return 0
}

// Package metrics provides language model metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LLMMetrics contains Prometheus metrics for language model operations
type LLMMetrics struct {
	registry *prometheus.Registry

	// Request metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Response shape metrics
	responseSize *prometheus.HistogramVec

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewLLMMetrics creates and registers new language model metrics
func NewLLMMetrics(registry *prometheus.Registry) (*LLMMetrics, error) {
	m := &LLMMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *LLMMetrics) initMetrics() error {
	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total number of language model requests",
		},
		[]string{"provider", "operation", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Duration of language model requests in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"provider", "operation"},
	)

	m.responseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_response_size_chars",
			Help:    "Size of language model responses in characters",
			Buckets: prometheus.ExponentialBuckets(16, 2, 10),
		},
		[]string{"provider", "operation"},
	)

	m.collectors = []prometheus.Collector{
		m.requestsTotal,
		m.requestDuration,
		m.responseSize,
	}

	return nil
}

// Describe implements the Collector interface
func (m *LLMMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *LLMMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordRequest records a language model request. The operation label
// identifies what the model was asked to do (analysis, query, answer).
func (m *LLMMetrics) RecordRequest(provider, operation string, durationSeconds float64, responseChars int, err error) {
	if err != nil {
		m.requestsTotal.WithLabelValues(provider, operation, "error").Inc()
		return
	}
	m.requestsTotal.WithLabelValues(provider, operation, "success").Inc()
	m.requestDuration.WithLabelValues(provider, operation).Observe(durationSeconds)
	m.responseSize.WithLabelValues(provider, operation).Observe(float64(responseChars))
}

// Package metrics provides defect detector metrics for observability
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// DetectorMetrics contains Prometheus metrics for the defect detection service client
type DetectorMetrics struct {
	registry *prometheus.Registry

	// Request metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram
	requestErrors   *prometheus.CounterVec

	// Detection result metrics
	detectionsTotal     *prometheus.CounterVec
	detectionConfidence prometheus.Histogram
	detectionsPerImage  prometheus.Histogram

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewDetectorMetrics creates and registers new detector metrics
func NewDetectorMetrics(registry *prometheus.Registry) (*DetectorMetrics, error) {
	m := &DetectorMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *DetectorMetrics) initMetrics() error {
	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detector_requests_total",
			Help: "Total number of detection requests",
		},
		[]string{"status"},
	)

	m.requestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "detector_request_duration_seconds",
			Help:    "Duration of detection requests in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	m.requestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detector_request_errors_total",
			Help: "Total number of detection request errors",
		},
		[]string{"error_type"},
	)

	m.detectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detector_detections_total",
			Help: "Total number of individual defect detections",
		},
		[]string{"defect_type", "severity"},
	)

	m.detectionConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "detector_detection_confidence",
			Help:    "Distribution of detection confidence values",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	m.detectionsPerImage = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "detector_detections_per_image",
			Help:    "Number of detections returned per analyzed image",
			Buckets: prometheus.LinearBuckets(0, 2, 11),
		},
	)

	m.collectors = []prometheus.Collector{
		m.requestsTotal,
		m.requestDuration,
		m.requestErrors,
		m.detectionsTotal,
		m.detectionConfidence,
		m.detectionsPerImage,
	}

	return nil
}

// Describe implements the Collector interface
func (m *DetectorMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *DetectorMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordRequest records a detection request with its outcome
func (m *DetectorMetrics) RecordRequest(durationSeconds float64, err error) {
	if err != nil {
		m.requestsTotal.WithLabelValues("error").Inc()
		m.requestErrors.WithLabelValues(categorizeDetectorError(err)).Inc()
		return
	}
	m.requestsTotal.WithLabelValues("success").Inc()
	m.requestDuration.Observe(durationSeconds)
}

// RecordDetection records a single post-processed detection
func (m *DetectorMetrics) RecordDetection(defectType, severity string, confidence float64) {
	m.detectionsTotal.WithLabelValues(defectType, severity).Inc()
	m.detectionConfidence.Observe(confidence)
}

// RecordImageResult records the number of detections an image produced
func (m *DetectorMetrics) RecordImageResult(detectionCount int) {
	m.detectionsPerImage.Observe(float64(detectionCount))
}

// categorizeDetectorError returns a category string for the error type
func categorizeDetectorError(err error) string {
	if err == nil {
		return "none"
	}
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline"):
		return "timeout"
	case strings.Contains(errStr, "connection"), strings.Contains(errStr, "dial"):
		return "connection"
	case strings.Contains(errStr, "status"):
		return "http_status"
	case strings.Contains(errStr, "decode"), strings.Contains(errStr, "unmarshal"):
		return "decode"
	default:
		return "unknown"
	}
}

// Package metrics provides condition scoring metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ScoringMetrics contains Prometheus metrics for condition score computation
type ScoringMetrics struct {
	registry *prometheus.Registry

	// Computation metrics
	computationsTotal   *prometheus.CounterVec
	computationDuration prometheus.Histogram

	// Result distribution metrics
	conditionScoreHist prometheus.Histogram
	ratingsTotal       *prometheus.CounterVec
	deductGroupsHist   prometheus.Histogram
	maxCDVHist         prometheus.Histogram

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewScoringMetrics creates and registers new scoring metrics
func NewScoringMetrics(registry *prometheus.Registry) (*ScoringMetrics, error) {
	m := &ScoringMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *ScoringMetrics) initMetrics() error {
	m.computationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_computations_total",
			Help: "Total number of condition score computations",
		},
		[]string{"status"},
	)

	m.computationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scoring_computation_duration_seconds",
			Help:    "Duration of condition score computations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
	)

	// Scores and corrected deduct values both live on a 0-100 scale.
	m.conditionScoreHist = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scoring_condition_score",
			Help:    "Distribution of computed condition scores (0-100)",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	m.ratingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_ratings_total",
			Help: "Total number of assessments per condition rating",
		},
		[]string{"rating"},
	)

	m.deductGroupsHist = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scoring_deduct_groups",
			Help:    "Number of distinct defect groups contributing deduct values",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		},
	)

	m.maxCDVHist = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scoring_max_corrected_deduct",
			Help:    "Distribution of maximum corrected deduct values (0-100)",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	m.collectors = []prometheus.Collector{
		m.computationsTotal,
		m.computationDuration,
		m.conditionScoreHist,
		m.ratingsTotal,
		m.deductGroupsHist,
		m.maxCDVHist,
	}

	return nil
}

// Describe implements the Collector interface
func (m *ScoringMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *ScoringMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordComputation records a successful score computation and its result shape
func (m *ScoringMetrics) RecordComputation(score float64, rating string, deductGroups int, maxCDV, durationSeconds float64) {
	m.computationsTotal.WithLabelValues("success").Inc()
	m.computationDuration.Observe(durationSeconds)
	m.conditionScoreHist.Observe(score)
	m.ratingsTotal.WithLabelValues(rating).Inc()
	m.deductGroupsHist.Observe(float64(deductGroups))
	m.maxCDVHist.Observe(maxCDV)
}

// RecordComputationError records a failed score computation
func (m *ScoringMetrics) RecordComputationError() {
	m.computationsTotal.WithLabelValues("error").Inc()
}

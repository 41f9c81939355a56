// Package metrics provides workflow engine metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WorkflowMetrics contains Prometheus metrics for workflow engine operations
type WorkflowMetrics struct {
	registry *prometheus.Registry

	// Run-level metrics
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	runSteps    *prometheus.HistogramVec

	// Stage-level metrics
	stageExecutionsTotal *prometheus.CounterVec
	stageDuration        *prometheus.HistogramVec
	stageFailuresTotal   *prometheus.CounterVec

	// State gauges
	activeRunsGauge prometheus.Gauge

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewWorkflowMetrics creates and registers new workflow engine metrics
func NewWorkflowMetrics(registry *prometheus.Registry) (*WorkflowMetrics, error) {
	m := &WorkflowMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *WorkflowMetrics) initMetrics() error {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_runs_total",
			Help: "Total number of workflow runs",
		},
		[]string{"workflow", "status"},
	)

	m.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workflow_run_duration_seconds",
			Help:    "Duration of complete workflow runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"workflow"},
	)

	m.runSteps = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workflow_run_steps",
			Help:    "Number of stages executed per workflow run",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
		[]string{"workflow"},
	)

	m.stageExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_stage_executions_total",
			Help: "Total number of stage executions",
		},
		[]string{"workflow", "stage", "status"},
	)

	m.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workflow_stage_duration_seconds",
			Help:    "Duration of individual stage executions in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"workflow", "stage"},
	)

	m.stageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_stage_failures_total",
			Help: "Total number of stage failures by applied failure policy",
		},
		[]string{"workflow", "stage", "policy"},
	)

	m.activeRunsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "workflow_active_runs",
			Help: "Number of currently executing workflow runs",
		},
	)

	m.collectors = []prometheus.Collector{
		m.runsTotal,
		m.runDuration,
		m.runSteps,
		m.stageExecutionsTotal,
		m.stageDuration,
		m.stageFailuresTotal,
		m.activeRunsGauge,
	}

	return nil
}

// Describe implements the Collector interface
func (m *WorkflowMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *WorkflowMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordRun records a completed workflow run with its final status
// (completed, degraded or failed), duration and stage count.
func (m *WorkflowMetrics) RecordRun(workflow, status string, durationSeconds float64, steps int) {
	m.runsTotal.WithLabelValues(workflow, status).Inc()
	m.runDuration.WithLabelValues(workflow).Observe(durationSeconds)
	m.runSteps.WithLabelValues(workflow).Observe(float64(steps))
}

// RecordStage records a single stage execution
func (m *WorkflowMetrics) RecordStage(workflow, stage, status string, durationSeconds float64) {
	m.stageExecutionsTotal.WithLabelValues(workflow, stage, status).Inc()
	m.stageDuration.WithLabelValues(workflow, stage).Observe(durationSeconds)
}

// RecordStageFailure records a stage failure together with the failure
// policy that was applied to it.
func (m *WorkflowMetrics) RecordStageFailure(workflow, stage, policy string) {
	m.stageFailuresTotal.WithLabelValues(workflow, stage, policy).Inc()
}

// IncActiveRuns increments the active run gauge
func (m *WorkflowMetrics) IncActiveRuns() {
	m.activeRunsGauge.Inc()
}

// DecActiveRuns decrements the active run gauge
func (m *WorkflowMetrics) DecActiveRuns() {
	m.activeRunsGauge.Dec()
}

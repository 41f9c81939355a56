package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// gatherNames collects the metric family names currently exposed by the registry.
func gatherNames(t *testing.T, registry *prometheus.Registry) map[string]bool {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	return names
}

func TestWorkflowMetricsRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewWorkflowMetrics(registry)
	if err != nil {
		t.Fatalf("NewWorkflowMetrics failed: %v", err)
	}

	m.RecordRun("assessment", "completed", 1.2, 3)
	m.RecordStage("assessment", "detect", "ok", 0.8)
	m.RecordStageFailure("chat", "validate_query", "fatal")
	m.IncActiveRuns()
	m.DecActiveRuns()

	names := gatherNames(t, registry)
	for _, want := range []string{
		"workflow_runs_total",
		"workflow_run_duration_seconds",
		"workflow_stage_executions_total",
		"workflow_stage_duration_seconds",
		"workflow_stage_failures_total",
		"workflow_active_runs",
	} {
		if !names[want] {
			t.Errorf("metric family %q not gathered", want)
		}
	}
}

func TestScoringMetricsRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewScoringMetrics(registry)
	if err != nil {
		t.Fatalf("NewScoringMetrics failed: %v", err)
	}

	m.RecordComputation(38, "Fair", 3, 61.8, 0.0001)
	m.RecordComputationError()

	names := gatherNames(t, registry)
	for _, want := range []string{
		"scoring_computations_total",
		"scoring_condition_score",
		"scoring_ratings_total",
		"scoring_max_corrected_deduct",
	} {
		if !names[want] {
			t.Errorf("metric family %q not gathered", want)
		}
	}
}

func TestDetectorErrorCategories(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "none"},
		{"timeout", errString("request timeout exceeded"), "timeout"},
		{"connection", errString("dial tcp: connection refused"), "connection"},
		{"status", errString("unexpected status 503"), "http_status"},
		{"decode", errString("failed to decode response body"), "decode"},
		{"other", errString("something odd"), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := categorizeDetectorError(tt.err); got != tt.want {
				t.Errorf("categorizeDetectorError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestHTTPActiveRequestsGauge(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(registry)
	if err != nil {
		t.Fatalf("NewHTTPMetrics failed: %v", err)
	}

	m.IncActiveRequests()
	m.IncActiveRequests()
	m.DecActiveRequests()

	if got := m.GetActiveRequests(); got != 1 {
		t.Errorf("GetActiveRequests() = %v, want 1", got)
	}
}

// errString is a trivial error implementation for table tests.
type errString string

func (e errString) Error() string { return string(e) }

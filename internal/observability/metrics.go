// Package observability provides Prometheus metrics functionality for monitoring
// the PaveWatch-Go application. Sentry-related error telemetry is handled in the
// telemetry package.
package observability

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"github.com/pavewatch/pavewatch-go/internal/observability/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Workflow  *metrics.WorkflowMetrics
	Scoring   *metrics.ScoringMetrics
	Detector  *metrics.DetectorMetrics
	LLM       *metrics.LLMMetrics
	Datastore *metrics.DatastoreMetrics
	HTTP      *metrics.HTTPMetrics
	MQTT      *metrics.MQTTMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors.
// It returns an error if any metric collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	workflowMetrics, err := metrics.NewWorkflowMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Workflow metrics: %w", err)
	}

	scoringMetrics, err := metrics.NewScoringMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Scoring metrics: %w", err)
	}

	detectorMetrics, err := metrics.NewDetectorMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Detector metrics: %w", err)
	}

	llmMetrics, err := metrics.NewLLMMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM metrics: %w", err)
	}

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Datastore metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	m := &Metrics{
		registry:  registry,
		Workflow:  workflowMetrics,
		Scoring:   scoringMetrics,
		Detector:  detectorMetrics,
		LLM:       llmMetrics,
		Datastore: datastoreMetrics,
		HTTP:      httpMetrics,
		MQTT:      mqttMetrics,
	}

	// Wire the shared datastore instrumentation
	datastore.SetMetrics(datastoreMetrics)

	return m, nil
}

// RegisterHandlers registers the metrics endpoint with the provided http.ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/metrics", m.metricsHandler)
}

// Handler returns the HTTP handler for the /metrics endpoint, for embedding
// into routers that are not a plain http.ServeMux.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(m.metricsHandler)
}

// metricsHandler is the HTTP handler for the /metrics endpoint.
func (m *Metrics) metricsHandler(w http.ResponseWriter, r *http.Request) {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
	h.ServeHTTP(w, r)
}

// Package analysis wires configured collaborators into the runnable
// commands: one-shot image assessment, the API server and interactive chat.
package analysis

import (
	"context"
	"fmt"

	"github.com/pavewatch/pavewatch-go/internal/conf"
	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"github.com/pavewatch/pavewatch-go/internal/detector"
	"github.com/pavewatch/pavewatch-go/internal/llm"
	"github.com/pavewatch/pavewatch-go/internal/logging"
	"github.com/pavewatch/pavewatch-go/internal/mqtt"
	"github.com/pavewatch/pavewatch-go/internal/observability"
	"github.com/pavewatch/pavewatch-go/internal/pipeline"
	"github.com/pavewatch/pavewatch-go/internal/scoring"
)

// environment holds the wired collaborators shared by every command.
type environment struct {
	store   datastore.Interface
	service *pipeline.Service
	metrics *observability.Metrics

	publisher *mqtt.Publisher
}

// buildEnvironment constructs the full collaborator graph from settings.
// The MQTT publisher is optional: a broken broker configuration downgrades
// publishing rather than failing startup.
func buildEnvironment(ctx context.Context, settings *conf.Settings) (*environment, error) {
	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("error initializing metrics: %w", err)
	}

	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("error opening datastore: %w", err)
	}

	env := &environment{store: store, metrics: metrics}

	tables, err := scoring.LoadTables(settings.Scoring.TablesPath)
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("error loading scoring tables: %w", err)
	}
	engine := scoring.NewEngine(tables, scoring.WithMetrics(metrics.Scoring))

	det, err := detector.NewHTTPClient(&settings.Detector, detector.WithMetrics(metrics.Detector))
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("error creating detector client: %w", err)
	}

	provider, err := llm.New(ctx, &settings.LLM, llm.WithMetrics(metrics.LLM))
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("error creating llm provider: %w", err)
	}

	opts := []pipeline.ServiceOption{pipeline.WithMetrics(metrics)}
	if settings.Integrations.MQTT.Enabled {
		publisher, err := mqtt.NewPublisher(settings, metrics.MQTT)
		if err != nil {
			logging.Warn("MQTT publishing disabled", "error", err)
		} else {
			env.publisher = publisher
			opts = append(opts, pipeline.WithPublisher(publisher))
		}
	}

	service, err := pipeline.NewService(settings, store, det, engine, provider, opts...)
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("error creating pipeline service: %w", err)
	}
	env.service = service

	return env, nil
}

// Close releases the environment in dependency order: the service drains its
// publishes before the publisher and store go away.
func (e *environment) Close() {
	if e.service != nil {
		e.service.Close()
	}
	if e.publisher != nil {
		e.publisher.Close()
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			logging.Error("Failed to close datastore", "error", err)
		}
	}
}

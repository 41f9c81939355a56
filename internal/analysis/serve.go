package analysis

import (
	"context"
	"fmt"
	"log"

	"github.com/pavewatch/pavewatch-go/internal/api"
	"github.com/pavewatch/pavewatch-go/internal/conf"
)

// RunServer wires the collaborators and serves the HTTP API until a
// termination signal arrives.
func RunServer(ctx context.Context, settings *conf.Settings) error {
	env, err := buildEnvironment(ctx, settings)
	if err != nil {
		return err
	}
	defer env.Close()

	fmt.Printf("PaveWatch-Go %s (built %s), node %s\n",
		settings.Version, settings.BuildDate, settings.Main.Name)
	fmt.Printf("Detector endpoint: %s, LLM provider: %s\n",
		settings.Detector.Endpoint, settings.LLM.Provider)
	if env.publisher != nil {
		fmt.Printf("MQTT publishing to %s\n", settings.Integrations.MQTT.Topic)
	}

	server, err := api.NewServer(settings,
		api.WithDataStore(env.store),
		api.WithService(env.service),
		api.WithMetrics(env.metrics),
		api.WithLogger(log.Default()),
	)
	if err != nil {
		return err
	}

	return server.StartWithGracefulShutdown()
}

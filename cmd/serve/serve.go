package serve

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavewatch/pavewatch-go/internal/analysis"
	"github.com/pavewatch/pavewatch-go/internal/conf"
)

// Command creates a new command for serving the HTTP API.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the assessment HTTP API",
		Long:  "Start the HTTP API for creating assessments, listing them and asking questions about them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.RunServer(cmd.Context(), settings)
		},
	}

	// Set up flags specific to the 'serve' command
	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port for the web server")
	cmd.Flags().BoolVar(&settings.Integrations.MQTT.Enabled, "mqtt", viper.GetBool("integrations.mqtt.enabled"), "Publish committed assessments to the configured MQTT broker")

	// Bind flags to the viper settings
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}

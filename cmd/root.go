package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavewatch/pavewatch-go/cmd/analyze"
	"github.com/pavewatch/pavewatch-go/cmd/chat"
	"github.com/pavewatch/pavewatch-go/cmd/serve"
	"github.com/pavewatch/pavewatch-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pavewatch",
		Short: "PaveWatch-Go CLI",
	}

	// Set up the global flags for the root command.
	setupFlags(rootCmd, settings)

	// Add sub-commands to the root command.
	subcommands := []*cobra.Command{
		analyze.Command(settings),
		serve.Command(settings),
		chat.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	// Flags are applied to settings by the time any RunE executes; reject
	// configurations no command could run with.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().Float64VarP(&settings.Detector.ConfidenceThreshold, "threshold", "t", viper.GetFloat64("detector.confidencethreshold"), "Confidence threshold for reported defects, value between 0.1 to 1.0")
	rootCmd.PersistentFlags().StringVar(&settings.Detector.Endpoint, "detector", viper.GetString("detector.endpoint"), "Base URL of the defect detection service")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}

package analyze

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavewatch/pavewatch-go/internal/analysis"
	"github.com/pavewatch/pavewatch-go/internal/conf"
)

// location tags the assessment with a human-readable place
var location string

// asJSON emits the committed record instead of the console summary
var asJSON bool

// Command creates a new command for one-shot image assessment.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [image-ref]",
		Short: "Assess a pavement image",
		Long:  "Run detection, condition scoring and analysis for a single pavement image and print the committed assessment.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.AssessImage(cmd.Context(), settings, args[0], location, asJSON, os.Stdout)
		},
	}

	// Set up flags specific to the 'analyze' command
	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the analyze command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVarP(&location, "location", "l", "", "Location description stored with the assessment")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the assessment as JSON")
	cmd.Flags().Float64Var(&settings.Detector.MetersPerPixel, "resolution", viper.GetFloat64("detector.metersperpixel"), "Ground resolution in meters per pixel")

	// Bind flags to the viper settings
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}

package chat

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pavewatch/pavewatch-go/internal/analysis"
	"github.com/pavewatch/pavewatch-go/internal/conf"
)

// Command creates a new command for interactive chat about an assessment.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [assessment-id]",
		Short: "Ask questions about a committed assessment",
		Long:  "Open an interactive session answering questions about one committed assessment, backed by the same query pipeline as the HTTP API.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.InteractiveChat(cmd.Context(), settings, args[0], os.Stdin, os.Stdout)
		},
	}
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/trackvault/internal/app"
	"github.com/oshokin/trackvault/internal/config"
	"github.com/oshokin/trackvault/internal/logger"
)

//nolint:gochecknoglobals // Cobra command requires a global definition.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of known downloads.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := config.ValidateConfig(appConfig); err != nil {
			logger.Fatalf(cmd.Context(), "Invalid configuration: %v", err)
		}

		output, _ := cmd.Flags().GetString("output")

		app.ExecuteStatusCommand(cmd.Context(), appConfig, output)
	},
}

//nolint:gochecknoinits // Cobra requires the init function to set up commands.
func init() {
	statusCmd.Flags().StringP(
		"output",
		"o",
		app.OutputTable,
		"output format: table, json or yaml.")

	rootCmd.AddCommand(statusCmd)
}

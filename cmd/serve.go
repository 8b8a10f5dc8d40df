package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/trackvault/internal/app"
	"github.com/oshokin/trackvault/internal/logger"
)

//nolint:gochecknoglobals // Cobra command requires a global definition.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP surface for playback and downloads.",
	Long: `Serve exposes the download queue and byte-range playback over HTTP:

  GET    /downloads             list download states
  POST   /downloads             enqueue tracks
  GET    /downloads/{id}        get one state
  DELETE /downloads/{id}        cancel a download
  POST   /downloads/{id}/retry  retry a download
  GET    /stream/{id}           stream a track, honouring Range
  GET    /metrics               Prometheus metrics

The server runs until it receives a signal.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := bindFlagsToConfig(cmd.Flags(), appConfig); err != nil {
			logger.Fatalf(cmd.Context(), "Failed to parse flags: %v", err)
		}

		app.ExecuteServeCommand(cmd.Context(), appConfig)
	},
}

//nolint:gochecknoinits // Cobra requires the init function to set up commands.
func init() {
	flags := serveCmd.Flags()

	addRuntimeFlags(flags)
	flags.StringP(
		"listen",
		"l",
		"",
		"address of the HTTP server, for example: 127.0.0.1:8080.")

	rootCmd.AddCommand(serveCmd)
}

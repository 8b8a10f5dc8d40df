package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/oshokin/trackvault/internal/app"
	"github.com/oshokin/trackvault/internal/logger"
)

// errNoTrackIDs indicates that neither arguments nor an ids file were given.
var errNoTrackIDs = errors.New("requires at least one track id or --ids-file")

//nolint:gochecknoglobals // Cobra command requires a global definition.
var downloadCmd = &cobra.Command{
	Use:   "download [flags] {ids}",
	Short: "Download tracks by id into the local library.",
	Long: `Download resolves every track, transfers it with resume support and commits it
to the output directory. Failed transfers are retried with exponential backoff.

The command exits when every requested track is completed, failed or cancelled.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if idsFile, _ := cmd.Flags().GetString("ids-file"); len(args) == 0 && idsFile == "" {
			return errNoTrackIDs
		}

		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := bindFlagsToConfig(cmd.Flags(), appConfig); err != nil {
			logger.Fatalf(cmd.Context(), "Failed to parse flags: %v", err)
		}

		trackIDs, err := collectTrackIDs(cmd.Flags(), args)
		if err != nil {
			logger.Fatalf(cmd.Context(), "Failed to collect track ids: %v", err)
		}

		app.ExecuteDownloadCommand(cmd.Context(), appConfig, trackIDs)
	},
}

//nolint:gochecknoinits // Cobra requires the init function to set up commands.
func init() {
	flags := downloadCmd.Flags()

	addRuntimeFlags(flags)
	flags.StringP(
		"ids-file",
		"i",
		"",
		"file with one track id per line.")

	rootCmd.AddCommand(downloadCmd)
}

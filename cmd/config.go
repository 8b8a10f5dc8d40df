package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/trackvault/internal/app"
	"github.com/oshokin/trackvault/internal/config"
	"github.com/oshokin/trackvault/internal/logger"
)

var (
	//nolint:gochecknoglobals // Cobra command requires a global definition.
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}

	//nolint:gochecknoglobals // Cobra command requires a global definition.
	configSetTokenCmd = &cobra.Command{
		Use:   "set-token {token}",
		Short: "Save the resolver auth token to the configuration file",
		Long: `Saves the auth token sent to the stream resolver service.

The token is written to the configuration file given by --config, keeping
the rest of the file untouched. The file is created when it does not exist.`,
		Args:             cobra.ExactArgs(1),
		PersistentPreRun: initTokenConfig,
		Run: func(cmd *cobra.Command, args []string) {
			app.ExecuteSetTokenCommand(cmd.Context(), appConfig, args[0])
		},
	}
)

//nolint:gochecknoinits // Cobra requires the init function to set up commands.
func init() {
	configCmd.AddCommand(configSetTokenCmd)
	rootCmd.AddCommand(configCmd)
}

// initTokenConfig loads the configuration when it exists; set-token creates a missing file.
func initTokenConfig(cmd *cobra.Command, _ []string) {
	cfg, err := config.LoadConfig(configFilenameFromFlag)
	if err != nil {
		logger.Debugf(cmd.Context(), "Configuration not loaded, a new file will be written: %v", err)

		cfg = new(config.Config)
	}

	appConfig = cfg
}

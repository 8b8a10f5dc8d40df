package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oshokin/trackvault/internal/config"
	"github.com/oshokin/trackvault/internal/logger"
	"github.com/oshokin/trackvault/internal/utils"
)

// shutdownGracePeriod is how long a signalled command may run before the process exits.
const shutdownGracePeriod = 15 * time.Second

var (
	//nolint:gochecknoglobals // It is required for configuration initialization before the application starts.
	configFilenameFromFlag string

	//nolint:gochecknoglobals,lll // It is initialized once during the application's startup and shared across the command execution logic.
	appConfig *config.Config

	//nolint:gochecknoglobals,lll // Cobra command requires a global definition for proper command-line parsing and execution.
	rootCmd = &cobra.Command{
		Use:   "trackvault",
		Short: "Stream, cache and download audio tracks from a stream resolver service.",
		Long: `Trackvault resolves playable audio streams of tracks by id.

It can:
- Download tracks into a local library with bounded concurrency and retries
- Serve byte ranges of tracks to local players, backed by a range cache
- Report the state of every known download`,
		PersistentPreRun: initConfig,
	}
)

// Execute executes the root command.
func Execute() {
	signals := []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)

	defer func() {
		_ = logger.Logger().Sync()
	}()

	defer stop()

	done := make(chan struct{})

	go func() {
		defer close(done)
		defer stop()

		err := rootCmd.ExecuteContext(ctx)
		cobra.CheckErr(err)
	}()

	<-ctx.Done()

	// Give the command a chance to release its resources after a signal.
	select {
	case <-done:
	case <-time.After(shutdownGracePeriod):
	}
}

//nolint:gochecknoinits // Cobra requires the init function to set up flags before the command is executed.
func init() {
	rootCmd.PersistentFlags().StringVarP(
		&configFilenameFromFlag,
		"config",
		"c",
		"",
		fmt.Sprintf("path to the configuration file (default is '%s')",
			config.DefaultConfigFilename))
}

func initConfig(cmd *cobra.Command, _ []string) {
	var err error

	appConfig, err = config.LoadConfig(configFilenameFromFlag)
	if err != nil {
		logger.Fatalf(cmd.Context(), "Failed to load configuration: %v", err)
	}

	if level, ok := logger.ParseLogLevel(appConfig.LogLevel); ok {
		logger.SetLevel(level)
	}
}

// addRuntimeFlags registers the flags shared by the commands that run downloads.
func addRuntimeFlags(flags *pflag.FlagSet) {
	flags.StringP(
		"output",
		"o",
		"",
		"directory to save downloaded files (the path will be created if it doesn't exist).")

	flags.Int64P(
		"concurrency",
		"n",
		0,
		"maximum number of concurrent downloads.")

	flags.IntP(
		"format",
		"f",
		0,
		"format tag pinned for downloads, 0 lets the resolver choose.")

	flags.StringP(
		"speed-limit",
		"s",
		"",
		"set download speed limit, for example: 500 kbps, 1 mbps, 1.5 mbps.")
}

func bindFlagsToConfig(flags *pflag.FlagSet, cfg *config.Config) error {
	if flag := flags.Lookup("output"); flag != nil && flag.Changed {
		cfg.OutputPath, _ = flags.GetString("output")
	}

	if flag := flags.Lookup("concurrency"); flag != nil && flag.Changed {
		cfg.MaxConcurrentDownloads, _ = flags.GetInt64("concurrency")
	}

	if flag := flags.Lookup("format"); flag != nil && flag.Changed {
		cfg.PreferredFormat, _ = flags.GetInt("format")
	}

	if flag := flags.Lookup("speed-limit"); flag != nil && flag.Changed {
		cfg.DownloadSpeedLimit, _ = flags.GetString("speed-limit")
	}

	if flag := flags.Lookup("listen"); flag != nil && flag.Changed {
		cfg.ListenAddress, _ = flags.GetString("listen")
	}

	return config.ValidateConfig(cfg)
}

// collectTrackIDs merges the ids given as arguments with the ids listed in a file.
func collectTrackIDs(flags *pflag.FlagSet, args []string) ([]string, error) {
	trackIDs := append([]string(nil), args...)

	idsFile, _ := flags.GetString("ids-file")
	if idsFile == "" {
		return trackIDs, nil
	}

	lines, err := utils.ReadUniqueLinesFromFile(idsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read ids file: %w", err)
	}

	return append(trackIDs, lines...), nil
}

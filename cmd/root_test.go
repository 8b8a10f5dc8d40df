package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/trackvault/internal/config"
	"github.com/oshokin/trackvault/internal/constants"
	"github.com/oshokin/trackvault/internal/version"
)

const testBaseConfigContent = `
auth_token: "config_token"
resolver_base_url: "https://resolver.example.com"
output_path: "/config/output"
preferred_format: 1
max_concurrent_downloads: 2
download_speed_limit: "500KB"
log_level: "info"
listen_address: "127.0.0.1:9000"
`

func loadTestConfig(t *testing.T, content string) *config.Config {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "test-config.yaml")

	err := os.WriteFile(
		configPath,
		[]byte(content),
		constants.DefaultFilePermissions,
	) //nolint:gosec // It's a test file.
	require.NoError(t, err)

	cfg, err := config.LoadConfig(configPath)
	require.NoError(t, err)

	return cfg
}

func newTestCommand() *cobra.Command {
	testCmd := &cobra.Command{Use: "test"}

	addRuntimeFlags(testCmd.Flags())
	testCmd.Flags().StringP("listen", "l", "", "listen address")
	testCmd.Flags().StringP("ids-file", "i", "", "ids file")

	return testCmd
}

// TestFlagOverrides tests that command-line flags correctly override configuration file values.
//
//nolint:funlen,nolintlint,tparallel // It's a comprehensive integration test. Cannot run in parallel due to Viper global state.
func TestFlagOverrides(t *testing.T) {
	tests := []struct {
		name           string
		flags          map[string]string
		expectedConfig func(*testing.T, *config.Config)
	}{
		{
			name:  "no flags - use config values",
			flags: map[string]string{},
			expectedConfig: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, "/config/output", cfg.OutputPath)
				assert.Equal(t, 1, cfg.PreferredFormat)
				assert.Equal(t, int64(2), cfg.MaxConcurrentDownloads)
				assert.Equal(t, "500KB", cfg.DownloadSpeedLimit)
				assert.Equal(t, int64(500_000), cfg.ParsedDownloadSpeedLimit)
				assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddress)
			},
		},
		{
			name:  "output flag only - override output path",
			flags: map[string]string{"output": "/flag/output"},
			expectedConfig: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, "/flag/output", cfg.OutputPath)
				assert.Equal(t, int64(2), cfg.MaxConcurrentDownloads)
			},
		},
		{
			name:  "concurrency flag only - override pool size",
			flags: map[string]string{"concurrency": "5"},
			expectedConfig: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, int64(5), cfg.MaxConcurrentDownloads)
				assert.Equal(t, "/config/output", cfg.OutputPath)
			},
		},
		{
			name:  "format flag only - override format",
			flags: map[string]string{"format": "3"},
			expectedConfig: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, 3, cfg.PreferredFormat)
			},
		},
		{
			name:  "format flag zero - let the resolver choose",
			flags: map[string]string{"format": "0"},
			expectedConfig: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, 0, cfg.PreferredFormat)
			},
		},
		{
			name:  "speed-limit flag only - override speed limit",
			flags: map[string]string{"speed-limit": "1MB"},
			expectedConfig: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, "1MB", cfg.DownloadSpeedLimit)
				assert.Equal(t, int64(1_000_000), cfg.ParsedDownloadSpeedLimit)
			},
		},
		{
			name:  "listen flag only - override listen address",
			flags: map[string]string{"listen": "0.0.0.0:8181"},
			expectedConfig: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, "0.0.0.0:8181", cfg.ListenAddress)
			},
		},
		{
			name: "all flags - override everything",
			flags: map[string]string{
				"output":      "/all/flags/output",
				"concurrency": "4",
				"format":      "2",
				"speed-limit": "2MB",
				"listen":      "127.0.0.1:7000",
			},
			expectedConfig: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, "/all/flags/output", cfg.OutputPath)
				assert.Equal(t, int64(4), cfg.MaxConcurrentDownloads)
				assert.Equal(t, 2, cfg.PreferredFormat)
				assert.Equal(t, "2MB", cfg.DownloadSpeedLimit)
				assert.Equal(t, "127.0.0.1:7000", cfg.ListenAddress)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadTestConfig(t, testBaseConfigContent)
			testCmd := newTestCommand()

			for flagName, flagValue := range tt.flags {
				require.NoError(t, testCmd.Flags().Set(flagName, flagValue), "failed to set flag %s", flagName)
			}

			err := bindFlagsToConfig(testCmd.Flags(), cfg)
			require.NoError(t, err)

			tt.expectedConfig(t, cfg)
		})
	}
}

// TestFlagOverrides_InvalidValues tests that invalid flag values are caught during validation.
//
//nolint:nolintlint,tparallel // Cannot run in parallel due to Viper global state.
func TestFlagOverrides_InvalidValues(t *testing.T) {
	invalidTests := []struct {
		name          string
		flagName      string
		flagValue     string
		expectedError error
	}{
		{
			name:          "zero concurrency",
			flagName:      "concurrency",
			flagValue:     "0",
			expectedError: config.ErrInvalidConcurrentDownloads,
		},
		{
			name:          "negative format",
			flagName:      "format",
			flagValue:     "-1",
			expectedError: config.ErrInvalidPreferredFormat,
		},
		{
			name:          "empty output",
			flagName:      "output",
			flagValue:     " ",
			expectedError: config.ErrEmptyOutputPath,
		},
	}

	for _, tt := range invalidTests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadTestConfig(t, testBaseConfigContent)
			testCmd := newTestCommand()

			require.NoError(t, testCmd.Flags().Set(tt.flagName, tt.flagValue))

			err := bindFlagsToConfig(testCmd.Flags(), cfg)
			require.ErrorIs(t, err, tt.expectedError)
		})
	}
}

// TestFlagOverrides_InvalidSpeedLimit tests that an unparsable speed limit is rejected.
//
//nolint:nolintlint,tparallel // Cannot run in parallel due to Viper global state.
func TestFlagOverrides_InvalidSpeedLimit(t *testing.T) {
	cfg := loadTestConfig(t, testBaseConfigContent)
	testCmd := newTestCommand()

	require.NoError(t, testCmd.Flags().Set("speed-limit", "invalid-speed"))

	err := bindFlagsToConfig(testCmd.Flags(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse download speed limit")
}

// TestBindFlagsToConfig_EmptyFlagSet tests handling of empty flag set.
func TestBindFlagsToConfig_EmptyFlagSet(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		ResolverBaseURL:        "https://resolver.example.com",
		OutputPath:             "downloads",
		LogLevel:               "info",
		MaxConcurrentDownloads: 1,
		MaxRetryAttempts:       3,
		InitialRetryDelay:      "1s",
		ResolveTimeout:         "15s",
		HTTPTimeout:            "120s",
		TrackCacheSize:         100,
	}

	emptyFlags := pflag.NewFlagSet("test", pflag.ContinueOnError)

	err := bindFlagsToConfig(emptyFlags, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cfg.MaxConcurrentDownloads)
}

// TestCollectTrackIDs tests merging of argument ids and file ids.
func TestCollectTrackIDs(t *testing.T) {
	t.Parallel()

	idsFile := filepath.Join(t.TempDir(), "ids.txt")

	err := os.WriteFile(
		idsFile,
		[]byte("# favourites\nt2\n\nt3\nt2\n"),
		constants.DefaultFilePermissions,
	) //nolint:gosec // It's a test file.
	require.NoError(t, err)

	t.Run("Arguments only", func(t *testing.T) {
		t.Parallel()

		trackIDs, err := collectTrackIDs(newTestCommand().Flags(), []string{"t1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"t1"}, trackIDs)
	})

	t.Run("Arguments and file", func(t *testing.T) {
		t.Parallel()

		testCmd := newTestCommand()
		require.NoError(t, testCmd.Flags().Set("ids-file", idsFile))

		trackIDs, err := collectTrackIDs(testCmd.Flags(), []string{"t1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"t1", "t2", "t3"}, trackIDs)
	})

	t.Run("Missing file", func(t *testing.T) {
		t.Parallel()

		testCmd := newTestCommand()
		require.NoError(t, testCmd.Flags().Set("ids-file", filepath.Join(t.TempDir(), "missing.txt")))

		_, err := collectTrackIDs(testCmd.Flags(), nil)
		require.Error(t, err)
	})
}

// TestDownloadArgs tests that the download command requires ids.
func TestDownloadArgs(t *testing.T) {
	t.Parallel()

	testCmd := newTestCommand()
	require.ErrorIs(t, downloadCmd.Args(testCmd, nil), errNoTrackIDs)
	require.NoError(t, downloadCmd.Args(testCmd, []string{"t1"}))

	require.NoError(t, testCmd.Flags().Set("ids-file", "ids.txt"))
	require.NoError(t, downloadCmd.Args(testCmd, nil))
}

// TestVersionCommand tests the version output.
func TestVersionCommand(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	testCmd := &cobra.Command{Use: "version", Run: versionCmd.Run}
	testCmd.SetOut(&buf)
	testCmd.Run(testCmd, nil)

	assert.Equal(t, version.Full(), strings.TrimSpace(buf.String()))
}

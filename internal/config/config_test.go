package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/trackvault/internal/constants"
)

// validConfig returns a configuration that passes validation.
func validConfig() *Config {
	return &Config{
		ResolverBaseURL:        "https://resolver.example",
		OutputPath:             "/tmp/music",
		LogLevel:               "info",
		MaxConcurrentDownloads: 3,
		MaxRetryAttempts:       3,
		InitialRetryDelay:      "1s",
		ResolveTimeout:         "15s",
		HTTPTimeout:            "120s",
		DownloadSpeedLimit:     "",
		TrackCacheSize:         100,
	}
}

// TestConstants tests the default constants.
func TestConstants(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1024*1024, DefaultMaxLogLength)
	assert.Equal(t, 3, DefaultMaxConcurrentDownloads)
	assert.Equal(t, 3, DefaultMaxRetryAttempts)
	assert.Equal(t, "15s", DefaultResolveTimeout)
}

// TestLoadConfig tests the LoadConfig function.
//
//nolint:paralleltest // Viper keeps global state.
func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name           string
		configFilename string
		configContent  string
		expectError    bool
		expectedError  string
	}{
		{
			name:           "valid config file",
			configFilename: "valid_config.yaml",
			configContent: `
auth_token: "test_token"
resolver_base_url: "https://resolver.example"
output_path: "/tmp/music"
log_level: "debug"
max_concurrent_downloads: 5
user_agents:
  - "Agent/1.0"
  - "Agent/2.0"
`,
			expectError: false,
		},
		{
			name:           "non-existent file",
			configFilename: "non_existent.yaml",
			expectError:    true,
			expectedError:  "failed to read config from file",
		},
		{
			name:           "invalid yaml",
			configFilename: "invalid.yaml",
			configContent: `
invalid: yaml: content: [unclosed
`,
			expectError:   true,
			expectedError: "failed to read config from file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), tt.configFilename)

			if tt.configContent != "" {
				err := os.WriteFile(configPath, []byte(tt.configContent), constants.DefaultFilePermissions)
				require.NoError(t, err)
			}

			cfg, err := LoadConfig(configPath)

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				assert.Nil(t, cfg)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "test_token", cfg.AuthToken)
			assert.Equal(t, "https://resolver.example", cfg.ResolverBaseURL)
			assert.Equal(t, int64(5), cfg.MaxConcurrentDownloads)
			assert.Equal(t, []string{"Agent/1.0", "Agent/2.0"}, cfg.UserAgents)

			// Keys missing from the file fall back to defaults.
			assert.Equal(t, DefaultMaxRetryAttempts, cfg.MaxRetryAttempts)
			assert.Equal(t, DefaultResolveTimeout, cfg.ResolveTimeout)
			assert.Equal(t, DefaultTrackCacheSize, cfg.TrackCacheSize)
			assert.True(t, cfg.MetricsEnabled)
		})
	}
}

// TestValidateConfig tests the ValidateConfig function.
func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mutate      func(cfg *Config)
		expectedErr error
		errorMsg    string
	}{
		{
			name:   "valid config",
			mutate: func(_ *Config) {},
		},
		{
			name:        "empty resolver url",
			mutate:      func(cfg *Config) { cfg.ResolverBaseURL = "  " },
			expectedErr: ErrEmptyResolverURL,
		},
		{
			name:        "relative resolver url",
			mutate:      func(cfg *Config) { cfg.ResolverBaseURL = "resolver.example" },
			expectedErr: ErrInvalidResolverURL,
		},
		{
			name:        "unsupported scheme",
			mutate:      func(cfg *Config) { cfg.ResolverBaseURL = "ftp://resolver.example" },
			expectedErr: ErrInvalidResolverURL,
		},
		{
			name:        "empty output path",
			mutate:      func(cfg *Config) { cfg.OutputPath = "" },
			expectedErr: ErrEmptyOutputPath,
		},
		{
			name:        "unknown log level",
			mutate:      func(cfg *Config) { cfg.LogLevel = "verbose" },
			expectedErr: ErrUnknownLogLevel,
		},
		{
			name:        "negative preferred format",
			mutate:      func(cfg *Config) { cfg.PreferredFormat = -1 },
			expectedErr: ErrInvalidPreferredFormat,
		},
		{
			name:        "zero concurrency",
			mutate:      func(cfg *Config) { cfg.MaxConcurrentDownloads = 0 },
			expectedErr: ErrInvalidConcurrentDownloads,
		},
		{
			name:        "too many retries",
			mutate:      func(cfg *Config) { cfg.MaxRetryAttempts = 11 },
			expectedErr: ErrInvalidRetryAttempts,
		},
		{
			name:     "unparsable retry delay",
			mutate:   func(cfg *Config) { cfg.InitialRetryDelay = "soon" },
			errorMsg: "failed to parse initial retry delay",
		},
		{
			name:        "non-positive retry delay",
			mutate:      func(cfg *Config) { cfg.InitialRetryDelay = "0s" },
			expectedErr: ErrInvalidRetryDelay,
		},
		{
			name:        "non-positive resolve timeout",
			mutate:      func(cfg *Config) { cfg.ResolveTimeout = "-1s" },
			expectedErr: ErrInvalidResolveTimeout,
		},
		{
			name:        "non-positive http timeout",
			mutate:      func(cfg *Config) { cfg.HTTPTimeout = "0s" },
			expectedErr: ErrInvalidHTTPTimeout,
		},
		{
			name:     "invalid speed limit",
			mutate:   func(cfg *Config) { cfg.DownloadSpeedLimit = "fast" },
			errorMsg: "failed to parse download speed limit",
		},
		{
			name:        "zero cache size",
			mutate:      func(cfg *Config) { cfg.TrackCacheSize = 0 },
			expectedErr: ErrInvalidTrackCacheSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)

			switch {
			case tt.expectedErr != nil:
				require.ErrorIs(t, err, tt.expectedErr)
			case tt.errorMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			default:
				require.NoError(t, err)
			}
		})
	}
}

// TestValidateConfig_DerivedFields tests that parsed fields are populated.
func TestValidateConfig_DerivedFields(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.LogLevel = "WARN"
	cfg.DownloadSpeedLimit = "1 MB"
	cfg.InitialRetryDelay = "250ms"

	require.NoError(t, ValidateConfig(cfg))

	assert.Equal(t, zapcore.WarnLevel, cfg.ParsedLogLevel)
	assert.Equal(t, int64(1000*1000), cfg.ParsedDownloadSpeedLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.ParsedInitialRetryDelay)
	assert.Equal(t, 15*time.Second, cfg.ParsedResolveTimeout)
	assert.Equal(t, 120*time.Second, cfg.ParsedHTTPTimeout)
}

// TestValidateConfig_DownloadSpeedLimit tests the speed limit parsing.
func TestValidateConfig_DownloadSpeedLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		limit    string
		expected int64
	}{
		{limit: "", expected: 0},
		{limit: "0", expected: 0},
		{limit: "500KB", expected: 500 * 1000},
		{limit: "1MiB", expected: 1024 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.limit, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			cfg.DownloadSpeedLimit = tt.limit

			require.NoError(t, ValidateConfig(cfg))
			assert.Equal(t, tt.expected, cfg.ParsedDownloadSpeedLimit)
		})
	}
}

// TestSaveConfig tests that the auth token is written back without losing other keys.
//
//nolint:paralleltest // Viper keeps global state.
func TestSaveConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "# resolver settings\nresolver_base_url: \"https://resolver.example\"\noutput_path: /tmp/music\n"

	require.NoError(t, os.WriteFile(configPath, []byte(content), constants.DefaultFilePermissions))

	_, err := LoadConfig(configPath)
	require.NoError(t, err)

	require.NoError(t, SaveConfig(&Config{AuthToken: "new-token"}))

	saved, err := os.ReadFile(configPath)
	require.NoError(t, err)

	assert.Contains(t, string(saved), "# resolver settings")
	assert.Contains(t, string(saved), `auth_token: "new-token"`)
	assert.Contains(t, string(saved), "output_path: /tmp/music")

	viper.Reset()
}

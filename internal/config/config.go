package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/trackvault/internal/constants"
	"github.com/oshokin/trackvault/internal/logger"
	"github.com/oshokin/trackvault/internal/utils"
)

// Config holds all configuration settings.
type Config struct {
	// AuthToken is the token sent to the stream resolver service as the "auth" cookie.
	AuthToken string `mapstructure:"auth_token"`
	// ResolverBaseURL is the base URL of the stream resolver service.
	ResolverBaseURL string `mapstructure:"resolver_base_url"`
	// OutputPath is the directory where committed tracks are stored.
	OutputPath string `mapstructure:"output_path"`
	// CachePath is the directory for temporary transfer files and the local byte-range cache.
	CachePath string `mapstructure:"cache_path"`
	// DatabasePath is the path of the SQLite catalogue database.
	DatabasePath string `mapstructure:"database_path"`
	// LogLevel specifies the logging verbosity level.
	LogLevel string `mapstructure:"log_level"`
	// UserAgents is the list of User-Agent strings used for HTTP requests.
	UserAgents []string `mapstructure:"user_agents"`
	// Referer is sent with stream requests when set.
	Referer string `mapstructure:"referer"`
	// PreferredFormat is the format tag pinned for downloads (0 lets the resolver choose).
	PreferredFormat int `mapstructure:"preferred_format"`
	// MaxConcurrentDownloads is the size of the transfer permit pool.
	MaxConcurrentDownloads int64 `mapstructure:"max_concurrent_downloads"`
	// MaxRetryAttempts is the number of retries after a failed transfer attempt.
	MaxRetryAttempts int `mapstructure:"max_retry_attempts"`
	// InitialRetryDelay is the delay before the first retry, doubled for each further retry.
	InitialRetryDelay string `mapstructure:"initial_retry_delay"`
	// ResolveTimeout bounds one stream resolution on the playback path.
	ResolveTimeout string `mapstructure:"resolve_timeout"`
	// HTTPTimeout bounds one HTTP exchange, including reading the body.
	HTTPTimeout string `mapstructure:"http_timeout"`
	// DownloadSpeedLimit sets the maximum transfer speed per second (e.g., "1MB", "500KB").
	DownloadSpeedLimit string `mapstructure:"download_speed_limit"`
	// TrackCacheSize is the capacity of the in-memory track metadata and resolution caches.
	TrackCacheSize int `mapstructure:"track_cache_size"`
	// ListenAddress is the address of the HTTP surface started by "serve".
	ListenAddress string `mapstructure:"listen_address"`
	// MetricsEnabled enables the Prometheus metrics exporter.
	MetricsEnabled bool `mapstructure:"metrics_enabled"`
	// ParsedInitialRetryDelay is the parsed initial retry delay.
	ParsedInitialRetryDelay time.Duration
	// ParsedResolveTimeout is the parsed resolution timeout.
	ParsedResolveTimeout time.Duration
	// ParsedHTTPTimeout is the parsed HTTP timeout.
	ParsedHTTPTimeout time.Duration
	// ParsedDownloadSpeedLimit is the parsed download speed limit in bytes per second (0 = unlimited).
	ParsedDownloadSpeedLimit int64
	// ParsedLogLevel is the parsed zap log level.
	ParsedLogLevel zapcore.Level
}

const (
	// DefaultConfigFilename is the default name of the configuration file.
	DefaultConfigFilename = ".trackvault.yaml"

	// EnvPrefix is the prefix of environment variables overriding configuration keys.
	EnvPrefix = "TRACKVAULT"

	// DefaultMaxLogLength is the default maximum size (in bytes) of a logged HTTP dump.
	DefaultMaxLogLength = 1 * 1024 * 1024 // 1 MB

	// DefaultMaxConcurrentDownloads is the default size of the transfer permit pool.
	DefaultMaxConcurrentDownloads = 3

	// DefaultMaxRetryAttempts is the default number of retries after a failed attempt.
	DefaultMaxRetryAttempts = 3

	// DefaultInitialRetryDelay is the default delay before the first retry.
	DefaultInitialRetryDelay = "1s"

	// DefaultResolveTimeout is the default bound of a playback-path resolution.
	DefaultResolveTimeout = "15s"

	// DefaultHTTPTimeout is the default bound of one HTTP exchange.
	DefaultHTTPTimeout = "120s"

	// DefaultTrackCacheSize is the default capacity of in-memory track caches.
	DefaultTrackCacheSize = 10000

	// DefaultListenAddress is the default address of the HTTP surface.
	DefaultListenAddress = "127.0.0.1:8080"

	// maxRetryAttempts caps the retry count so backoff delays stay reasonable.
	maxRetryAttempts = 10
)

// Static error definitions for better error handling.
var (
	// ErrEmptyResolverURL indicates that the resolver base URL is missing.
	ErrEmptyResolverURL = errors.New("resolver_base_url cannot be empty")
	// ErrInvalidResolverURL indicates that the resolver base URL is not an absolute HTTP(S) URL.
	ErrInvalidResolverURL = errors.New("resolver_base_url must be an absolute http(s) URL")
	// ErrEmptyOutputPath indicates that the output path is missing.
	ErrEmptyOutputPath = errors.New("output_path cannot be empty")
	// ErrUnknownLogLevel indicates that the log level is not recognized.
	ErrUnknownLogLevel = errors.New("unknown log level")
	// ErrInvalidConcurrentDownloads indicates that the concurrent downloads count is invalid.
	ErrInvalidConcurrentDownloads = errors.New("max concurrent downloads must be a positive integer")
	// ErrInvalidRetryAttempts indicates that the retry attempts count is invalid.
	ErrInvalidRetryAttempts = errors.New("max_retry_attempts must be between 0 and 10")
	// ErrInvalidRetryDelay indicates that the initial retry delay is invalid.
	ErrInvalidRetryDelay = errors.New("initial_retry_delay must be positive")
	// ErrInvalidResolveTimeout indicates that the resolve timeout is invalid.
	ErrInvalidResolveTimeout = errors.New("resolve_timeout must be positive")
	// ErrInvalidHTTPTimeout indicates that the HTTP timeout is invalid.
	ErrInvalidHTTPTimeout = errors.New("http_timeout must be positive")
	// ErrInvalidPreferredFormat indicates that the preferred format tag is negative.
	ErrInvalidPreferredFormat = errors.New("preferred_format cannot be negative")
	// ErrInvalidTrackCacheSize indicates that the cache size is invalid.
	ErrInvalidTrackCacheSize = errors.New("track_cache_size must be a positive integer")
)

// setDefaults registers the default value of every key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("output_path", "downloads")
	v.SetDefault("cache_path", ".trackvault/cache")
	v.SetDefault("database_path", ".trackvault/catalog.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("preferred_format", 0)
	v.SetDefault("max_concurrent_downloads", DefaultMaxConcurrentDownloads)
	v.SetDefault("max_retry_attempts", DefaultMaxRetryAttempts)
	v.SetDefault("initial_retry_delay", DefaultInitialRetryDelay)
	v.SetDefault("resolve_timeout", DefaultResolveTimeout)
	v.SetDefault("http_timeout", DefaultHTTPTimeout)
	v.SetDefault("download_speed_limit", "")
	v.SetDefault("track_cache_size", DefaultTrackCacheSize)
	v.SetDefault("listen_address", DefaultListenAddress)
	v.SetDefault("metrics_enabled", true)
}

// LoadConfig loads configuration settings from a YAML file.
// Every key can be overridden by an environment variable, e.g. TRACKVAULT_OUTPUT_PATH.
func LoadConfig(configFilename string) (*Config, error) {
	if configFilename == "" {
		configFilename = DefaultConfigFilename
	}

	viper.SetConfigFile(configFilename)
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config from file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// ValidateConfig checks the configuration for validity and sets derived fields.
//
//nolint:funlen,gocognit,cyclop // Validation functions naturally have high complexity and length due to sequential checks.
func ValidateConfig(cfg *Config) error {
	var (
		downloadSpeedLimit       = strings.TrimSpace(cfg.DownloadSpeedLimit)
		parsedDownloadSpeedLimit uint64
		err                      error
	)

	cfg.ResolverBaseURL = strings.TrimSpace(cfg.ResolverBaseURL)
	if cfg.ResolverBaseURL == "" {
		return ErrEmptyResolverURL
	}

	resolverURL, err := url.Parse(cfg.ResolverBaseURL)
	if err != nil || resolverURL.Host == "" || (resolverURL.Scheme != "http" && resolverURL.Scheme != "https") {
		return fmt.Errorf("%w: '%s'", ErrInvalidResolverURL, cfg.ResolverBaseURL)
	}

	if strings.TrimSpace(cfg.OutputPath) == "" {
		return ErrEmptyOutputPath
	}

	parsedLogLevel, isLogLevelCorrect := logger.ParseLogLevel(cfg.LogLevel)
	if !isLogLevelCorrect {
		return fmt.Errorf("%w: '%s'", ErrUnknownLogLevel, cfg.LogLevel)
	}

	cfg.ParsedLogLevel = parsedLogLevel

	if cfg.PreferredFormat < 0 {
		return ErrInvalidPreferredFormat
	}

	if cfg.MaxConcurrentDownloads <= 0 {
		return ErrInvalidConcurrentDownloads
	}

	if cfg.MaxRetryAttempts < 0 || cfg.MaxRetryAttempts > maxRetryAttempts {
		return ErrInvalidRetryAttempts
	}

	cfg.ParsedInitialRetryDelay, err = time.ParseDuration(cfg.InitialRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to parse initial retry delay: %w", err)
	}

	if cfg.ParsedInitialRetryDelay <= 0 {
		return ErrInvalidRetryDelay
	}

	cfg.ParsedResolveTimeout, err = time.ParseDuration(cfg.ResolveTimeout)
	if err != nil {
		return fmt.Errorf("failed to parse resolve timeout: %w", err)
	}

	if cfg.ParsedResolveTimeout <= 0 {
		return ErrInvalidResolveTimeout
	}

	cfg.ParsedHTTPTimeout, err = time.ParseDuration(cfg.HTTPTimeout)
	if err != nil {
		return fmt.Errorf("failed to parse http timeout: %w", err)
	}

	if cfg.ParsedHTTPTimeout <= 0 {
		return ErrInvalidHTTPTimeout
	}

	if downloadSpeedLimit != "" && downloadSpeedLimit != "0" {
		parsedDownloadSpeedLimit, err = humanize.ParseBytes(downloadSpeedLimit)
		if err != nil {
			return fmt.Errorf("failed to parse download speed limit: %w", err)
		}
	}

	cfg.ParsedDownloadSpeedLimit = utils.SafeUint64ToInt64(parsedDownloadSpeedLimit)

	if cfg.TrackCacheSize <= 0 {
		return ErrInvalidTrackCacheSize
	}

	return nil
}

// SaveConfig writes the auth token back to the configuration file while preserving its layout.
func SaveConfig(cfg *Config) error {
	configFile := getConfigFilePath()

	originalContent, err := os.ReadFile(configFile)
	if err != nil {
		return handleMissingConfigFile(configFile, cfg.AuthToken, err)
	}

	// Parse YAML while preserving order using yaml.Node.
	var node yaml.Node
	if err = yaml.Unmarshal(originalContent, &node); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	setScalarInNode(&node, "auth_token", cfg.AuthToken)

	newContent, err := yaml.Marshal(&node)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err = os.WriteFile(configFile, newContent, constants.DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getConfigFilePath returns the config file path from viper or the default.
func getConfigFilePath() string {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		return DefaultConfigFilename
	}

	return configFile
}

// handleMissingConfigFile creates a new config file if it doesn't exist.
func handleMissingConfigFile(configFile, authToken string, err error) error {
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	viper.Set("auth_token", authToken)

	if err = viper.SafeWriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	return nil
}

// setScalarInNode sets a top-level scalar value in the YAML node tree, appending the key when absent.
func setScalarInNode(node *yaml.Node, key, value string) {
	// The root node is a document node, content[0] is the actual map.
	if len(node.Content) == 0 || node.Content[0].Kind != yaml.MappingNode {
		return
	}

	mapNode := node.Content[0]

	// Key-value pairs are stored as alternating nodes.
	for i := 0; i+1 < len(mapNode.Content); i += 2 {
		if mapNode.Content[i].Value != key {
			continue
		}

		valueNode := mapNode.Content[i+1]
		valueNode.Value = value

		if valueNode.Style == 0 {
			valueNode.Style = yaml.DoubleQuotedStyle
		}

		return
	}

	mapNode.Content = append(mapNode.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value, Style: yaml.DoubleQuotedStyle},
	)
}

package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/oshokin/trackvault/internal/client/catalog"
	"github.com/oshokin/trackvault/internal/config"
	"github.com/oshokin/trackvault/internal/logger"
	"github.com/oshokin/trackvault/internal/service/download"
	"github.com/oshokin/trackvault/internal/service/sink"
	"github.com/oshokin/trackvault/internal/service/stream"
	"github.com/oshokin/trackvault/internal/service/tags"
	"github.com/oshokin/trackvault/internal/storage"
	"github.com/oshokin/trackvault/internal/storage/sqlite"
	"github.com/oshokin/trackvault/internal/telemetry"
	"github.com/oshokin/trackvault/internal/version"
)

const (
	serviceName = "trackvault"

	// Subfolders of the cache path.
	tempFolder   = "temp"
	rangesFolder = "ranges"
)

// Runtime holds the long-lived components shared by every command.
type Runtime struct {
	// Config is the validated configuration.
	Config *config.Config
	// Telemetry records metrics.
	Telemetry *telemetry.Telemetry
	// Store is the durable catalogue.
	Store storage.CatalogStore
	// Catalog is the stream resolver client.
	Catalog catalog.Client
	// Sink holds the committed files.
	Sink *sink.FileSink
	// Interceptor serves playback requests and resolves download URLs.
	Interceptor stream.Interceptor
	// Loader opens playback byte ranges.
	Loader *stream.Loader
	// Orchestrator runs the downloads.
	Orchestrator download.Orchestrator
}

// NewRuntime builds every component from the configuration.
// The orchestrator is not started and the durable download states are loaded.
func NewRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.MetricsEnabled,
		ServiceName:    serviceName,
		ServiceVersion: version.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	db, err := sqlite.InitDB(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	store := sqlite.NewInstrumented(sqlite.NewCatalogStore(db), tel)

	rt, err := buildRuntime(cfg, tel, store)
	if err != nil {
		_ = store.Close()

		return nil, err
	}

	if err = rt.Orchestrator.States().Refresh(ctx); err != nil {
		_ = store.Close()

		return nil, fmt.Errorf("failed to load downloaded tracks: %w", err)
	}

	logger.Debugf(ctx, "Runtime initialized with %d downloaded tracks", len(rt.Orchestrator.States().Snapshot()))

	return rt, nil
}

func buildRuntime(cfg *config.Config, tel *telemetry.Telemetry, store storage.CatalogStore) (*Runtime, error) {
	catalogClient, err := catalog.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog client: %w", err)
	}

	fileSink, err := sink.NewFileSink(cfg.OutputPath, tags.NewWriter(), sink.WithRefOwner(store))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file sink: %w", err)
	}

	ranges, err := stream.NewByteRangeCache(filepath.Join(cfg.CachePath, rangesFolder))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize byte-range cache: %w", err)
	}

	resolutions, err := stream.NewResolutionCache(cfg.TrackCacheSize, ranges)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize resolution cache: %w", err)
	}

	interceptor := stream.NewInterceptor(&stream.InterceptorOptions{
		Client:         catalogClient,
		Cache:          resolutions,
		Ranges:         ranges,
		Store:          store,
		Telemetry:      tel,
		ResolveTimeout: cfg.ParsedResolveTimeout,
	})

	transfer, err := download.NewTransferExecutor(&download.TransferOptions{
		Client:     catalogClient,
		Sink:       fileSink,
		TempDir:    filepath.Join(cfg.CachePath, tempFolder),
		SpeedLimit: cfg.ParsedDownloadSpeedLimit,
		Telemetry:  tel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize transfer executor: %w", err)
	}

	orchestrator := download.NewOrchestrator(&download.OrchestratorOptions{
		Interceptor:       interceptor,
		Transfer:          transfer,
		Sink:              fileSink,
		Store:             store,
		Telemetry:         tel,
		MaxConcurrent:     cfg.MaxConcurrentDownloads,
		MaxRetries:        cfg.MaxRetryAttempts,
		InitialRetryDelay: cfg.ParsedInitialRetryDelay,
		FormatTag:         cfg.PreferredFormat,
	})

	return &Runtime{
		Config:       cfg,
		Telemetry:    tel,
		Store:        store,
		Catalog:      catalogClient,
		Sink:         fileSink,
		Interceptor:  interceptor,
		Loader:       stream.NewLoader(interceptor, catalogClient, ranges),
		Orchestrator: orchestrator,
	}, nil
}

// Close stops the orchestrator and releases the stores.
func (r *Runtime) Close(ctx context.Context) error {
	r.Orchestrator.Close()

	return errors.Join(
		r.Store.Close(),
		r.Telemetry.Shutdown(ctx),
	)
}

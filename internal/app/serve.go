package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/oshokin/trackvault/internal/config"
	"github.com/oshokin/trackvault/internal/http/rest"
	"github.com/oshokin/trackvault/internal/logger"
	"github.com/oshokin/trackvault/internal/service/download"
)

const readHeaderTimeout = 10 * time.Second

// ExecuteServeCommand runs the HTTP surface until ctx is done.
func ExecuteServeCommand(ctx context.Context, cfg *config.Config) {
	rt, err := NewRuntime(ctx, cfg)
	if err != nil {
		logger.Fatalf(ctx, "Failed to initialize: %v", err)
	}

	defer closeRuntime(ctx, rt)

	rt.Orchestrator.Start(ctx)

	go WatchActivity(ctx, rt.Orchestrator.States(), func(counts download.Counts) {
		if counts.Active() {
			logger.Infof(ctx, "Downloads in progress: %s", counts)
		} else {
			logger.Info(ctx, "All downloads finished")
		}
	})

	handler := rest.NewHandler(rt.Orchestrator, rt.Loader, rt.Catalog, rt.Telemetry)

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Errorf(ctx, "Failed to shut down HTTP server: %v", shutdownErr)
		}
	}()

	logger.Infof(ctx, "Serving on http://%s", cfg.ListenAddress)

	if err = server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf(ctx, "HTTP server failed: %v", err)
	}

	logger.Info(ctx, "HTTP server stopped")
}

// WatchActivity calls report whenever the aggregate counts change, until ctx is done.
// The initial counts are reported only when a download is active.
func WatchActivity(ctx context.Context, states *download.StateStore, report func(download.Counts)) {
	var (
		last    download.Counts
		started bool
	)

	for view := range states.Subscribe(ctx) {
		counts := countActive(view)

		if !started {
			started = true
			last = counts

			if counts.Active() {
				report(counts)
			}

			continue
		}

		if counts == last {
			continue
		}

		last = counts
		report(counts)
	}
}

func countActive(view map[string]download.State) download.Counts {
	var counts download.Counts

	for _, state := range view {
		switch state.Status {
		case download.StatusQueued:
			counts.Queued++
		case download.StatusDownloading:
			counts.Downloading++
		case download.StatusCompleted, download.StatusFailed, download.StatusCancelled:
		}
	}

	return counts
}

package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/trackvault/internal/config"
	"github.com/oshokin/trackvault/internal/logger"
	"github.com/oshokin/trackvault/internal/service/download"
)

// shutdownTimeout bounds the release of the runtime after a command.
const shutdownTimeout = 10 * time.Second

// DownloadSummary is the outcome of a download command.
type DownloadSummary struct {
	// Requested is the number of requested tracks.
	Requested int
	// Completed is the number of committed tracks.
	Completed int
	// Failed maps a failed track id to its last error.
	Failed map[string]string
	// Cancelled is the number of cancelled tracks.
	Cancelled int
	// Pending is the number of tracks still queued or downloading.
	Pending int
	// Interrupted reports whether the wait ended before every track was terminal.
	Interrupted bool
}

// ExecuteDownloadCommand downloads the given tracks and waits until every one is terminal.
func ExecuteDownloadCommand(ctx context.Context, cfg *config.Config, trackIDs []string) {
	trackIDs = uniqueTrackIDs(trackIDs)
	if len(trackIDs) == 0 {
		logger.Info(ctx, "No track ids to download")

		return
	}

	rt, err := NewRuntime(ctx, cfg)
	if err != nil {
		logger.Fatalf(ctx, "Failed to initialize: %v", err)
	}

	defer closeRuntime(ctx, rt)

	rt.Orchestrator.Start(ctx)

	tracks := download.DescribeTracks(ctx, rt.Catalog, trackIDs)
	if err = rt.Orchestrator.EnqueueAll(ctx, tracks); err != nil {
		logger.Errorf(ctx, "Failed to enqueue tracks: %v", err)
	}

	bar := newProgressBar(len(trackIDs))

	summary := WaitForTracks(ctx, rt.Orchestrator.States(), trackIDs, func(done int) {
		_ = bar.Set(done)
	})

	_ = bar.Finish()

	summary.Print(ctx)
}

// WaitForTracks blocks until every track is terminal or ctx is done.
// onProgress receives the number of terminal tracks whenever it changes.
func WaitForTracks(
	ctx context.Context,
	states *download.StateStore,
	trackIDs []string,
	onProgress func(done int),
) *DownloadSummary {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		view = states.Snapshot()
		done = -1
	)

	for update := range states.Subscribe(subCtx) {
		view = update

		terminal := countTerminal(view, trackIDs)
		if terminal != done {
			done = terminal

			if onProgress != nil {
				onProgress(done)
			}
		}

		if done == len(trackIDs) {
			break
		}
	}

	return summarize(view, trackIDs, ctx.Err() != nil)
}

// Print logs the summary in a boxed block.
func (s *DownloadSummary) Print(ctx context.Context) {
	logger.Info(ctx, "")
	logger.Info(ctx, "═══════════════════════════════════════════════════════════════")

	if s.Interrupted {
		logger.Info(ctx, "           DOWNLOAD SUMMARY (Interrupted)")
	} else {
		logger.Info(ctx, "                     DOWNLOAD SUMMARY")
	}

	logger.Info(ctx, "═══════════════════════════════════════════════════════════════")
	logger.Infof(ctx, "Tracks requested:  %d", s.Requested)
	logger.Infof(ctx, "  ✓ Completed:     %d", s.Completed)

	if len(s.Failed) > 0 {
		logger.Infof(ctx, "  ✗ Failed:        %d", len(s.Failed))
	}

	if s.Cancelled > 0 {
		logger.Infof(ctx, "  ⊘ Cancelled:     %d", s.Cancelled)
	}

	if s.Pending > 0 {
		logger.Infof(ctx, "  … Unfinished:    %d", s.Pending)
	}

	logger.Info(ctx, "═══════════════════════════════════════════════════════════════")

	for trackID, message := range s.Failed {
		logger.Errorf(ctx, "Track %s: %s", trackID, message)
	}
}

func summarize(view map[string]download.State, trackIDs []string, interrupted bool) *DownloadSummary {
	summary := &DownloadSummary{
		Requested:   len(trackIDs),
		Failed:      make(map[string]string),
		Interrupted: interrupted,
	}

	for _, trackID := range trackIDs {
		state, ok := view[trackID]
		if !ok {
			summary.Pending++

			continue
		}

		switch state.Status {
		case download.StatusCompleted:
			summary.Completed++
		case download.StatusFailed:
			summary.Failed[trackID] = state.Error
		case download.StatusCancelled:
			summary.Cancelled++
		case download.StatusQueued, download.StatusDownloading:
			summary.Pending++
		}
	}

	return summary
}

func countTerminal(view map[string]download.State, trackIDs []string) int {
	var done int

	for _, trackID := range trackIDs {
		if state, ok := view[trackID]; ok && state.Status.IsTerminal() {
			done++
		}
	}

	return done
}

func uniqueTrackIDs(trackIDs []string) []string {
	var (
		seen   = make(map[string]struct{}, len(trackIDs))
		result = make([]string, 0, len(trackIDs))
	)

	for _, trackID := range trackIDs {
		trackID = strings.TrimSpace(trackID)
		if trackID == "" {
			continue
		}

		if _, ok := seen[trackID]; ok {
			continue
		}

		seen[trackID] = struct{}{}
		result = append(result, trackID)
	}

	return result
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Downloading"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetVisibility(logger.Level() <= zapcore.InfoLevel),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}

func closeRuntime(ctx context.Context, rt *Runtime) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := rt.Close(closeCtx); err != nil {
		logger.Errorf(ctx, "Failed to close runtime: %v", err)
	}
}

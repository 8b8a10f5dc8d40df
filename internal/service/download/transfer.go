package download

//go:generate $MOCKGEN -source=transfer.go -destination=mocks/transfer_mock.go

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/oshokin/trackvault/internal/client/catalog"
	"github.com/oshokin/trackvault/internal/constants"
	"github.com/oshokin/trackvault/internal/logger"
	"github.com/oshokin/trackvault/internal/service/sink"
	"github.com/oshokin/trackvault/internal/telemetry"
	"github.com/oshokin/trackvault/internal/utils"
)

// TransferExecutor moves the bytes of one track into persistent storage.
type TransferExecutor interface {
	// Transfer streams a track to a temporary file and commits it to the sink.
	// The temporary file never outlives the call.
	Transfer(ctx context.Context, req *TransferRequest, progress ProgressFunc) (*TransferResult, error)
}

// ProgressFunc receives the bytes transferred so far and the expected total (0 if unknown).
type ProgressFunc func(downloaded, total int64)

// TransferRequest describes one transfer.
type TransferRequest struct {
	// Track is the track being downloaded.
	Track *Track
	// URL is the resolved stream URL.
	URL string
	// MimeType is the MIME type reported by the resolver (may be empty).
	MimeType string
	// ExpectedBytes is the stream size reported by the resolver (0 if unknown).
	ExpectedBytes int64
}

// TransferResult describes a committed transfer.
type TransferResult struct {
	// Ref is the durable reference returned by the sink.
	Ref string
	// Bytes is the number of bytes transferred.
	Bytes int64
}

// TransferOptions holds the settings and collaborators of a transfer executor.
type TransferOptions struct {
	// Client fetches stream bytes.
	Client catalog.Client
	// Sink receives the finished temporary files.
	Sink sink.Sink
	// TempDir is the folder of the temporary files.
	TempDir string
	// SpeedLimit caps the transfer speed in bytes per second (0 = unlimited).
	SpeedLimit int64
	// ChunkSize is the read granularity (0 = DefaultChunkSize).
	ChunkSize int
	// Telemetry records transferred bytes.
	Telemetry *telemetry.Telemetry
}

// TransferExecutorImpl implements the TransferExecutor interface.
type TransferExecutorImpl struct {
	client     catalog.Client
	sink       sink.Sink
	tempDir    string
	speedLimit int64
	chunkSize  int
	telemetry  *telemetry.Telemetry
	// now returns the current time.
	now func() time.Time
}

// fetchSummary describes the bytes written to a temporary file.
type fetchSummary struct {
	written  int64
	total    int64
	mimeType string
}

const (
	// DefaultChunkSize is the read granularity of a transfer.
	DefaultChunkSize = 8 * 1024

	// File options for creating a new temporary file (fails if the file already exists).
	createNewFileOptions = os.O_CREATE | os.O_EXCL | os.O_WRONLY

	tempFilePrefix = "temp_"

	// maxResumeAttempts is the number of reconnects within one attempt after a dropped connection.
	maxResumeAttempts = 3
)

// NewTransferExecutor creates a new transfer executor.
func NewTransferExecutor(opts *TransferOptions) (TransferExecutor, error) {
	if err := os.MkdirAll(opts.TempDir, constants.DefaultFolderPermissions); err != nil {
		return nil, fmt.Errorf("failed to create temporary folder: %w", err)
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &TransferExecutorImpl{
		client:     opts.Client,
		sink:       opts.Sink,
		tempDir:    opts.TempDir,
		speedLimit: opts.SpeedLimit,
		chunkSize:  chunkSize,
		telemetry:  opts.Telemetry,
		now:        time.Now,
	}, nil
}

// Transfer streams a track to a temporary file and commits it to the sink.
func (e *TransferExecutorImpl) Transfer(
	ctx context.Context,
	req *TransferRequest,
	progress ProgressFunc,
) (*TransferResult, error) {
	if req == nil || req.Track == nil || req.Track.ID == "" {
		return nil, ErrEmptyTrackID
	}

	// UUID-based names keep concurrent attempts for the same track apart.
	tempPath := filepath.Join(e.tempDir,
		tempFilePrefix+utils.SanitizeFilename(req.Track.ID)+"_"+uuid.NewString()+constants.ExtensionPart)

	file, err := os.OpenFile(filepath.Clean(tempPath), createNewFileOptions, constants.DefaultFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}

	closed := false

	defer func() {
		if !closed {
			_ = file.Close()
		}

		if removeErr := os.Remove(tempPath); removeErr != nil && !os.IsNotExist(removeErr) {
			logger.Warnf(ctx, "Failed to clean up temporary file '%s': %v", tempPath, removeErr)
		}
	}()

	tracker := newProgressTracker(progress, e.now)

	summary, err := e.fetch(ctx, req, file, tracker)

	closeErr := file.Close()
	closed = true

	if err != nil {
		return nil, err
	}

	if closeErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrTempFileWrite, closeErr)
	}

	if err = verifyTempFile(tempPath, summary.total); err != nil {
		return nil, err
	}

	tracker.finish(summary.written, summary.total)

	ref, err := e.sink.Commit(ctx, tempPath, &sink.Metadata{
		TrackID:         req.Track.ID,
		Title:           req.Track.Title,
		Artist:          req.Track.Artist,
		Album:           req.Track.Album,
		Year:            req.Track.Year,
		DurationSeconds: req.Track.DurationSeconds,
		MimeType:        summary.mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to commit track: %w", err)
	}

	// A cancellation racing the commit must not leave the committed file behind.
	if ctxErr := ctx.Err(); ctxErr != nil {
		if deleteErr := e.sink.Delete(context.WithoutCancel(ctx), ref); deleteErr != nil {
			logger.Warnf(ctx, "Failed to delete cancelled track '%s': %v", ref, deleteErr)
		}

		return nil, ctxErr
	}

	return &TransferResult{
		Ref:   ref,
		Bytes: summary.written,
	}, nil
}

// fetch writes the stream into file, reconnecting at the current offset when the connection drops.
func (e *TransferExecutorImpl) fetch(
	ctx context.Context,
	req *TransferRequest,
	file io.Writer,
	tracker *progressTracker,
) (*fetchSummary, error) {
	summary := &fetchSummary{
		total:    req.ExpectedBytes,
		mimeType: req.MimeType,
	}

	for resumes := 0; ; resumes++ {
		result, err := e.client.FetchStream(ctx, req.URL, summary.written)
		if err != nil {
			// The previous connection delivered every byte but did not end cleanly.
			if errors.Is(err, catalog.ErrRangeNotSatisfiable) && summary.written > 0 {
				return summary, nil
			}

			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}

			return nil, fmt.Errorf("failed to fetch stream: %w", err)
		}

		if result.Offset != summary.written {
			_ = result.Body.Close()

			return nil, fmt.Errorf("%w: requested offset %d, got %d",
				ErrResumeNotSupported, summary.written, result.Offset)
		}

		switch {
		case result.TotalBytes > 0:
			summary.total = result.TotalBytes
		case result.ContentLength > 0 && summary.total <= 0:
			summary.total = summary.written + result.ContentLength
		}

		if summary.mimeType == "" {
			summary.mimeType = result.MimeType
		}

		n, copyErr := e.copyChunks(ctx, file, result.Body, summary, tracker)
		_ = result.Body.Close()

		summary.written += n

		if copyErr == nil {
			return summary, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if errors.Is(copyErr, ErrTempFileWrite) || resumes >= maxResumeAttempts {
			return nil, copyErr
		}

		logger.Warnf(ctx, "Connection dropped after %s, resuming (%d/%d): %v",
			humanize.Bytes(uint64(summary.written)), resumes+1, maxResumeAttempts, copyErr) //nolint:gosec // Never negative.
	}
}

// copyChunks copies body into file chunk by chunk, honoring cancellation and the speed limit.
func (e *TransferExecutorImpl) copyChunks(
	ctx context.Context,
	file io.Writer,
	body io.Reader,
	summary *fetchSummary,
	tracker *progressTracker,
) (int64, error) {
	var (
		buffer      = make([]byte, e.chunkSize)
		written     int64
		windowStart = e.now()
		windowBytes int64
	)

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := body.Read(buffer)
		if n > 0 {
			if _, err := file.Write(buffer[:n]); err != nil {
				return written, fmt.Errorf("%w: %w", ErrTempFileWrite, err)
			}

			written += int64(n)

			e.telemetry.RecordTransferBytes(int64(n))
			tracker.update(summary.written+written, summary.total)

			if e.speedLimit > 0 {
				windowBytes += int64(n)

				// Throttle to respect speed limit.
				if windowBytes >= e.speedLimit {
					if err := sleepContext(ctx, windowStart.Add(time.Second).Sub(e.now())); err != nil {
						return written, err
					}

					windowStart = e.now()
					windowBytes = 0
				}
			}
		}

		if errors.Is(readErr, io.EOF) {
			return written, nil
		}

		if readErr != nil {
			return written, readErr
		}
	}
}

func verifyTempFile(tempPath string, expected int64) error {
	info, err := os.Stat(tempPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEmptyDownload, err)
	}

	if info.Size() == 0 {
		return ErrEmptyDownload
	}

	if expected > 0 && info.Size() < expected {
		return fmt.Errorf("%w: wrote %d bytes, expected %d bytes", ErrIncompleteDownload, info.Size(), expected)
	}

	return nil
}

// sleepContext waits for d unless ctx is done first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package sink

//go:generate $MOCKGEN -source=sink.go -destination=mocks/sink_mock.go

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/trackvault/internal/client/catalog"
	"github.com/oshokin/trackvault/internal/constants"
	"github.com/oshokin/trackvault/internal/logger"
	"github.com/oshokin/trackvault/internal/service/tags"
	"github.com/oshokin/trackvault/internal/storage"
	"github.com/oshokin/trackvault/internal/utils"
)

// Sink defines the interface of the persistent file storage for committed tracks.
type Sink interface {
	// Commit copies a finished temporary file into persistent storage and returns its durable reference.
	Commit(ctx context.Context, tempPath string, meta *Metadata) (string, error)
	// Delete removes a committed file. Deleting a missing file is not an error.
	Delete(ctx context.Context, ref string) error
	// Exists reports whether a durable reference still points to a file.
	Exists(ctx context.Context, ref string) (bool, error)
}

// Metadata contains the display metadata used to name and tag a committed track.
type Metadata struct {
	// TrackID is the catalogue identifier of the track.
	TrackID string
	// Title is the track title.
	Title string
	// Artist is the performing artist.
	Artist string
	// Album is the release title.
	Album string
	// Year is the release year (0 if unknown).
	Year int
	// DurationSeconds is the track duration.
	DurationSeconds int64
	// MimeType is the MIME type of the downloaded stream.
	MimeType string
}

// RefOwner looks up which track a committed file belongs to.
type RefOwner interface {
	// FindTrackByRef returns the track whose durable reference is ref, or nil if there is none.
	FindTrackByRef(ctx context.Context, ref string) (*storage.TrackRecord, error)
}

// Option configures a FileSink.
type Option func(*FileSink)

// WithRefOwner lets the sink recognize files recorded for other tracks by a previous run.
func WithRefOwner(owner RefOwner) Option {
	return func(s *FileSink) {
		s.owner = owner
	}
}

// FileSink stores committed tracks in a local folder.
// Two tracks never share a file: a track whose name is taken by another one gets its id appended.
type FileSink struct {
	// outputPath is the folder receiving committed tracks.
	outputPath string
	// tagWriter writes metadata into files before they are committed.
	tagWriter tags.Writer
	// owner finds the track recorded for an existing file (may be nil).
	owner RefOwner

	// mu guards claims.
	mu sync.Mutex
	// claims maps the destinations committed by this process to their track ids.
	claims map[string]string
}

const (
	// File options for overwriting an existing file.
	overwriteFileOptions = os.O_CREATE | os.O_TRUNC | os.O_WRONLY

	// copyChunkSize is the size of one copy step between context checks.
	copyChunkSize = 32 * 1024
)

// Static error definitions for better error handling.
var (
	// ErrEmptyTempPath indicates that no temporary file was given to Commit.
	ErrEmptyTempPath = errors.New("temporary file path cannot be empty")
	// ErrEmptyReference indicates that an empty durable reference was given.
	ErrEmptyReference = errors.New("durable reference cannot be empty")
	// ErrForeignReference indicates a reference outside of the output folder.
	ErrForeignReference = errors.New("reference is outside of the output folder")
)

// NewFileSink creates a new FileSink writing into outputPath.
func NewFileSink(outputPath string, tagWriter tags.Writer, opts ...Option) (*FileSink, error) {
	absolutePath, err := filepath.Abs(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output path: %w", err)
	}

	if err = os.MkdirAll(absolutePath, constants.DefaultFolderPermissions); err != nil {
		return nil, fmt.Errorf("failed to create output folder: %w", err)
	}

	s := &FileSink{
		outputPath: absolutePath,
		tagWriter:  tagWriter,
		claims:     make(map[string]string),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// OutputPath returns the absolute folder receiving committed tracks.
func (s *FileSink) OutputPath() string {
	return s.outputPath
}

// Commit copies a finished temporary file into persistent storage and returns its durable reference.
func (s *FileSink) Commit(ctx context.Context, tempPath string, meta *Metadata) (string, error) {
	if tempPath == "" {
		return "", ErrEmptyTempPath
	}

	if meta == nil {
		meta = new(Metadata)
	}

	s.writeTags(ctx, tempPath, meta)

	source, err := os.Open(filepath.Clean(tempPath))
	if err != nil {
		return "", fmt.Errorf("failed to open temporary file: %w", err)
	}

	defer source.Close() //nolint:errcheck // Read-only file, error on close is not critical here.

	destinationPath := s.claimDestination(ctx, meta)

	written, err := s.copyToDestination(ctx, source, destinationPath)
	if err != nil {
		s.releaseClaim(destinationPath, meta.TrackID)

		return "", err
	}

	logger.Infof(ctx, "Track committed to '%s' (%s)", destinationPath, humanize.Bytes(uint64(written))) //nolint:gosec // Non-negative.

	return destinationPath, nil
}

// Delete removes a committed file. Deleting a missing file is not an error.
func (s *FileSink) Delete(ctx context.Context, ref string) error {
	path, err := s.resolveReference(ref)
	if err != nil {
		return err
	}

	if err = os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete '%s': %w", path, err)
	}

	s.mu.Lock()
	delete(s.claims, path)
	s.mu.Unlock()

	logger.Debugf(ctx, "Committed file '%s' removed", path)

	return nil
}

// Exists reports whether a durable reference still points to a file.
func (s *FileSink) Exists(_ context.Context, ref string) (bool, error) {
	path, err := s.resolveReference(ref)
	if err != nil {
		return false, err
	}

	return utils.IsFileExist(path)
}

// claimDestination picks the destination of a track and reserves it for the track.
// The plain name is used unless another track holds it; then the track id is appended,
// and a digest of the id when even that name is taken.
func (s *FileSink) claimDestination(ctx context.Context, meta *Metadata) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var path string

	for _, name := range s.filenames(meta) {
		path = filepath.Join(s.outputPath, name)

		if !s.heldByOtherLocked(ctx, path, meta.TrackID) {
			break
		}
	}

	s.claims[path] = meta.TrackID

	return path
}

func (s *FileSink) releaseClaim(path, trackID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claims[path] == trackID {
		delete(s.claims, path)
	}
}

// heldByOtherLocked reports whether path belongs to a track other than trackID.
func (s *FileSink) heldByOtherLocked(ctx context.Context, path, trackID string) bool {
	if holder, ok := s.claims[path]; ok {
		return holder != trackID
	}

	if s.owner == nil {
		return false
	}

	exists, err := utils.IsFileExist(path)
	if err != nil || !exists {
		return err != nil
	}

	record, err := s.owner.FindTrackByRef(ctx, path)
	if err != nil {
		logger.Warnf(ctx, "Failed to look up the track of '%s': %v", path, err)

		return true
	}

	return record != nil && record.ID != trackID
}

// filenames lists the candidate names of a track, preferred first.
func (s *FileSink) filenames(meta *Metadata) []string {
	artist := strings.TrimSpace(meta.Artist)
	if artist == "" {
		artist = catalog.UnknownArtistName
	}

	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = meta.TrackID
	}

	names := []string{utils.TrackFilename(artist, title, meta.MimeType)}

	if meta.TrackID != "" {
		sum := sha256.Sum256([]byte(meta.TrackID))

		names = append(names,
			utils.TrackFilenameWithSuffix(artist, title, meta.TrackID, meta.MimeType),
			utils.TrackFilenameWithSuffix(artist, title, hex.EncodeToString(sum[:8]), meta.MimeType))
	}

	return names
}

// writeTags writes metadata into the temporary file; failures never block the commit.
func (s *FileSink) writeTags(ctx context.Context, tempPath string, meta *Metadata) {
	if s.tagWriter == nil || !s.tagWriter.Supports(meta.MimeType) {
		return
	}

	err := s.tagWriter.WriteTags(ctx, &tags.WriteTagsRequest{
		TrackPath:       tempPath,
		MimeType:        meta.MimeType,
		TrackID:         meta.TrackID,
		Title:           meta.Title,
		Artist:          meta.Artist,
		Album:           meta.Album,
		Year:            meta.Year,
		DurationSeconds: meta.DurationSeconds,
	})
	if err != nil {
		logger.Warnf(ctx, "Failed to write tags for track '%s': %v", meta.TrackID, err)
	}
}

func (s *FileSink) copyToDestination(ctx context.Context, source io.Reader, destinationPath string) (int64, error) {
	destination, err := os.OpenFile(filepath.Clean(destinationPath), overwriteFileOptions, constants.DefaultFilePermissions)
	if err != nil {
		return 0, fmt.Errorf("failed to create destination file: %w", err)
	}

	var committed bool

	defer func() {
		if committed {
			return
		}

		_ = destination.Close()

		if removeErr := os.Remove(destinationPath); removeErr != nil && !os.IsNotExist(removeErr) {
			logger.Warnf(ctx, "Failed to clean up destination file '%s': %v", destinationPath, removeErr)
		}
	}()

	var (
		buffer  = make([]byte, copyChunkSize)
		written int64
	)

	for {
		if err = ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := source.Read(buffer)
		if n > 0 {
			if _, err = destination.Write(buffer[:n]); err != nil {
				return written, fmt.Errorf("failed to write destination file: %w", err)
			}

			written += int64(n)
		}

		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return written, fmt.Errorf("failed to read temporary file: %w", readErr)
		}
	}

	if err = destination.Sync(); err != nil {
		return written, fmt.Errorf("failed to sync destination file: %w", err)
	}

	if err = destination.Close(); err != nil {
		return written, fmt.Errorf("failed to close destination file: %w", err)
	}

	committed = true

	return written, nil
}

func (s *FileSink) resolveReference(ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", ErrEmptyReference
	}

	path := filepath.Clean(ref)

	relativePath, err := filepath.Rel(s.outputPath, path)
	if err != nil || relativePath == ".." || strings.HasPrefix(relativePath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrForeignReference, ref)
	}

	return path, nil
}

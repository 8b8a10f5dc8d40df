package storage

//go:generate $MOCKGEN -source=storage.go -destination=mocks/storage_mock.go

import (
	"context"
	"time"
)

// TrackRecord represents the durable catalogue entry of a track.
type TrackRecord struct {
	// ID is the stable track identifier.
	ID string
	// Title is the track title.
	Title string
	// Artist is the display artist.
	Artist string
	// Album is the release title.
	Album string
	// DurationSeconds is the track duration.
	DurationSeconds int64
	// Year is the release year (0 if unknown).
	Year int
	// ThumbnailURL is the cover image URL.
	ThumbnailURL string
	// DownloadRef is the durable reference of the committed file (empty if not downloaded).
	DownloadRef string
	// DownloadedAt is the commit time (nil if not downloaded).
	DownloadedAt *time.Time
	// FirstAccessedAt is when the track was first played or resolved (nil if never).
	FirstAccessedAt *time.Time
}

// IsDownloaded reports whether the record carries a durable download reference.
func (r *TrackRecord) IsDownloaded() bool {
	return r != nil && r.DownloadRef != ""
}

// FormatRecord represents the last resolved stream format of a track.
type FormatRecord struct {
	// TrackID is the track identifier.
	TrackID string
	// Tag identifies the encoding.
	Tag int
	// MimeType is the MIME type of the stream.
	MimeType string
	// Codecs lists the codecs of the stream.
	Codecs string
	// Bitrate is the average bitrate in bits per second.
	Bitrate int64
	// SampleRate is the audio sample rate in Hz.
	SampleRate int
	// ContentLength is the size of the stream in bytes.
	ContentLength int64
	// LoudnessDB is the integrated loudness (nil if unknown).
	LoudnessDB *float64
	// PlaybackURL is the last resolved URL.
	PlaybackURL string
	// UpdatedAt is when the record was last written.
	UpdatedAt time.Time
}

// CatalogStore is the durable catalogue of tracks and resolved formats.
// All writes are idempotent upserts keyed by track id.
type CatalogStore interface {
	// UpsertTrack inserts or updates display metadata; download and access fields are preserved.
	UpsertTrack(ctx context.Context, record *TrackRecord) error
	// GetTrack returns the record of a track or nil if there is none.
	GetTrack(ctx context.Context, trackID string) (*TrackRecord, error)
	// FindTrackByRef returns the track whose durable reference is ref, or nil if there is none.
	FindTrackByRef(ctx context.Context, ref string) (*TrackRecord, error)
	// StampFirstAccess sets FirstAccessedAt when it is not set yet.
	StampFirstAccess(ctx context.Context, trackID string, at time.Time) error
	// MarkDownloaded records the durable reference and completion time of a track.
	MarkDownloaded(ctx context.Context, trackID, ref string, at time.Time) error
	// ClearDownload removes the durable reference and completion time of a track.
	ClearDownload(ctx context.Context, trackID string) error
	// ListDownloaded returns every track with a durable reference.
	ListDownloaded(ctx context.Context) ([]*TrackRecord, error)
	// UpsertFormat inserts or updates the resolved format of a track.
	UpsertFormat(ctx context.Context, record *FormatRecord) error
	// GetFormat returns the resolved format of a track or nil if there is none.
	GetFormat(ctx context.Context, trackID string) (*FormatRecord, error)
	// Close releases the underlying database.
	Close() error
}

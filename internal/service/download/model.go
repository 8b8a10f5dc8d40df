package download

import (
	"fmt"
	"time"

	"github.com/oshokin/trackvault/internal/storage"
)

// Status is the lifecycle stage of a download.
type Status string

const (
	// StatusQueued means the track waits for a free transfer permit.
	StatusQueued Status = "queued"
	// StatusDownloading means a worker owns the track, including backoff waits between attempts.
	StatusDownloading Status = "downloading"
	// StatusCompleted means the track is committed to durable storage.
	StatusCompleted Status = "completed"
	// StatusFailed means every attempt failed.
	StatusFailed Status = "failed"
	// StatusCancelled means the download was cancelled by a caller.
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no worker will change the status any more.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Track is the request payload of a download: the id plus the metadata used to name and tag the file.
type Track struct {
	// ID is the stable track identifier.
	ID string `json:"id"`
	// Title is the track title.
	Title string `json:"title,omitempty"`
	// Artist is the displayed artist name.
	Artist string `json:"artist,omitempty"`
	// Album is the release title.
	Album string `json:"album,omitempty"`
	// Year is the release year (0 if unknown).
	Year int `json:"year,omitempty"`
	// DurationSeconds is the track duration.
	DurationSeconds int64 `json:"duration_seconds,omitempty"`
	// ThumbnailURL is the cover image URL.
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

func (t *Track) hasMetadata() bool {
	return t.Title != "" || t.Artist != "" || t.Album != ""
}

func (t *Track) record() *storage.TrackRecord {
	return &storage.TrackRecord{
		ID:              t.ID,
		Title:           t.Title,
		Artist:          t.Artist,
		Album:           t.Album,
		DurationSeconds: t.DurationSeconds,
		Year:            t.Year,
		ThumbnailURL:    t.ThumbnailURL,
	}
}

// State is the current download state of a track.
type State struct {
	// TrackID is the track identifier.
	TrackID string `json:"track_id" yaml:"track_id"`
	// Status is the lifecycle stage.
	Status Status `json:"status" yaml:"status"`
	// Progress is the transferred fraction in [0, 1].
	Progress float64 `json:"progress" yaml:"progress"`
	// BytesDownloaded is the number of bytes transferred in the current attempt.
	BytesDownloaded int64 `json:"bytes_downloaded" yaml:"bytes_downloaded"`
	// TotalBytes is the expected stream size (0 if unknown).
	TotalBytes int64 `json:"total_bytes" yaml:"total_bytes"`
	// Error describes the last failure.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
	// RetryAttempt counts the retries made so far.
	RetryAttempt int `json:"retry_attempt" yaml:"retry_attempt"`
	// Ref is the durable reference of a completed download.
	Ref string `json:"ref,omitempty" yaml:"ref,omitempty"`
	// UpdatedAt is when the state was published.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Counts aggregates the active states of the unified view.
type Counts struct {
	// Queued is the number of tracks waiting for a permit.
	Queued int `json:"queued"`
	// Downloading is the number of tracks owned by a worker.
	Downloading int `json:"downloading"`
}

// Active reports whether any download is queued or running.
func (c Counts) Active() bool {
	return c.Queued > 0 || c.Downloading > 0
}

// String implements fmt.Stringer.
func (c Counts) String() string {
	return fmt.Sprintf("queued: %d, downloading: %d", c.Queued, c.Downloading)
}

// retryingMessage is the interim error text published during a backoff wait.
func retryingMessage(attempt, maxAttempts int) string {
	return fmt.Sprintf("Retrying... (%d/%d)", attempt, maxAttempts)
}

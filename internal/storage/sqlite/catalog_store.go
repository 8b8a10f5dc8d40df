package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/oshokin/trackvault/internal/storage"
)

// CatalogStore implements storage.CatalogStore and stores catalogue records in SQLite.
type CatalogStore struct {
	db *sql.DB
}

// timeLayout is the text layout of timestamps stored in the database.
const timeLayout = time.RFC3339Nano

// NewCatalogStore creates a new catalogue store on an initialized database.
func NewCatalogStore(db *sql.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// UpsertTrack inserts or updates display metadata; download and access fields are preserved.
func (s *CatalogStore) UpsertTrack(ctx context.Context, record *storage.TrackRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tracks (id, title, artist, album, duration_seconds, year, thumbnail_url)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			duration_seconds = excluded.duration_seconds,
			year = excluded.year,
			thumbnail_url = excluded.thumbnail_url`,
		record.ID, record.Title, record.Artist, record.Album,
		record.DurationSeconds, record.Year, record.ThumbnailURL,
	)

	return err
}

// GetTrack returns the record of a track or nil if there is none.
func (s *CatalogStore) GetTrack(ctx context.Context, trackID string) (*storage.TrackRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, artist, album, duration_seconds, year, thumbnail_url,
			download_ref, downloaded_at, first_accessed_at
		FROM tracks WHERE id = ?`,
		trackID,
	)

	record, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // A missing record is not an error.
	}

	return record, err
}

// FindTrackByRef returns the track whose durable reference is ref, or nil if there is none.
func (s *CatalogStore) FindTrackByRef(ctx context.Context, ref string) (*storage.TrackRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, artist, album, duration_seconds, year, thumbnail_url,
			download_ref, downloaded_at, first_accessed_at
		FROM tracks WHERE download_ref = ? ORDER BY downloaded_at DESC LIMIT 1`,
		ref,
	)

	record, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // A missing record is not an error.
	}

	return record, err
}

// StampFirstAccess sets FirstAccessedAt when it is not set yet.
func (s *CatalogStore) StampFirstAccess(ctx context.Context, trackID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tracks SET first_accessed_at = ? WHERE id = ? AND first_accessed_at IS NULL`,
		at.UTC().Format(timeLayout), trackID,
	)

	return err
}

// MarkDownloaded records the durable reference and completion time of a track.
func (s *CatalogStore) MarkDownloaded(ctx context.Context, trackID, ref string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tracks (id, download_ref, downloaded_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			download_ref = excluded.download_ref,
			downloaded_at = excluded.downloaded_at`,
		trackID, ref, at.UTC().Format(timeLayout),
	)

	return err
}

// ClearDownload removes the durable reference and completion time of a track.
func (s *CatalogStore) ClearDownload(ctx context.Context, trackID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tracks SET download_ref = NULL, downloaded_at = NULL WHERE id = ?`,
		trackID,
	)

	return err
}

// ListDownloaded returns every track with a durable reference.
func (s *CatalogStore) ListDownloaded(ctx context.Context) ([]*storage.TrackRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, artist, album, duration_seconds, year, thumbnail_url,
			download_ref, downloaded_at, first_accessed_at
		FROM tracks
		WHERE download_ref IS NOT NULL AND download_ref != ''
		ORDER BY downloaded_at, id`,
	)
	if err != nil {
		return nil, err
	}

	defer rows.Close() //nolint:errcheck // Error on close is not critical here.

	var records []*storage.TrackRecord

	for rows.Next() {
		record, scanErr := scanTrack(rows)
		if scanErr != nil {
			return nil, scanErr
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

// UpsertFormat inserts or updates the resolved format of a track.
func (s *CatalogStore) UpsertFormat(ctx context.Context, record *storage.FormatRecord) error {
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	var loudness sql.NullFloat64
	if record.LoudnessDB != nil {
		loudness = sql.NullFloat64{Float64: *record.LoudnessDB, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO formats (track_id, tag, mime_type, codecs, bitrate, sample_rate,
			content_length, loudness_db, playback_url, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (track_id) DO UPDATE SET
			tag = excluded.tag,
			mime_type = excluded.mime_type,
			codecs = excluded.codecs,
			bitrate = excluded.bitrate,
			sample_rate = excluded.sample_rate,
			content_length = excluded.content_length,
			loudness_db = excluded.loudness_db,
			playback_url = excluded.playback_url,
			updated_at = excluded.updated_at`,
		record.TrackID, record.Tag, record.MimeType, record.Codecs, record.Bitrate, record.SampleRate,
		record.ContentLength, loudness, record.PlaybackURL, updatedAt.UTC().Format(timeLayout),
	)

	return err
}

// GetFormat returns the resolved format of a track or nil if there is none.
func (s *CatalogStore) GetFormat(ctx context.Context, trackID string) (*storage.FormatRecord, error) {
	var (
		record    storage.FormatRecord
		loudness  sql.NullFloat64
		updatedAt string
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT track_id, tag, mime_type, codecs, bitrate, sample_rate,
			content_length, loudness_db, playback_url, updated_at
		FROM formats WHERE track_id = ?`,
		trackID,
	).Scan(
		&record.TrackID, &record.Tag, &record.MimeType, &record.Codecs, &record.Bitrate, &record.SampleRate,
		&record.ContentLength, &loudness, &record.PlaybackURL, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // A missing record is not an error.
	}

	if err != nil {
		return nil, err
	}

	if loudness.Valid {
		record.LoudnessDB = &loudness.Float64
	}

	if parsed, parseErr := time.Parse(timeLayout, updatedAt); parseErr == nil {
		record.UpdatedAt = parsed
	}

	return &record, nil
}

// Close releases the underlying database.
func (s *CatalogStore) Close() error {
	return s.db.Close()
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (*storage.TrackRecord, error) {
	var (
		record          storage.TrackRecord
		downloadRef     sql.NullString
		downloadedAt    sql.NullString
		firstAccessedAt sql.NullString
	)

	err := row.Scan(
		&record.ID, &record.Title, &record.Artist, &record.Album,
		&record.DurationSeconds, &record.Year, &record.ThumbnailURL,
		&downloadRef, &downloadedAt, &firstAccessedAt,
	)
	if err != nil {
		return nil, err
	}

	record.DownloadRef = downloadRef.String
	record.DownloadedAt = parseNullTime(downloadedAt)
	record.FirstAccessedAt = parseNullTime(firstAccessedAt)

	return &record, nil
}

func parseNullTime(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}

	parsed, err := time.Parse(timeLayout, value.String)
	if err != nil {
		return nil
	}

	return &parsed
}

package sqlite

import (
	"context"
	"time"

	"github.com/oshokin/trackvault/internal/storage"
	"github.com/oshokin/trackvault/internal/telemetry"
)

// InstrumentedCatalogStore wraps a catalogue store with telemetry.
type InstrumentedCatalogStore struct {
	store     storage.CatalogStore
	telemetry *telemetry.Telemetry
}

// NewInstrumented wraps store so that every operation records db metrics.
func NewInstrumented(store storage.CatalogStore, tel *telemetry.Telemetry) *InstrumentedCatalogStore {
	return &InstrumentedCatalogStore{
		store:     store,
		telemetry: tel,
	}
}

// UpsertTrack inserts or updates a track with telemetry.
func (s *InstrumentedCatalogStore) UpsertTrack(ctx context.Context, record *storage.TrackRecord) error {
	return s.telemetry.InstrumentDBOperation(ctx, "upsert_track", func(ctx context.Context) error {
		return s.store.UpsertTrack(ctx, record)
	})
}

// GetTrack retrieves a track with telemetry.
func (s *InstrumentedCatalogStore) GetTrack(ctx context.Context, trackID string) (*storage.TrackRecord, error) {
	var result *storage.TrackRecord

	err := s.telemetry.InstrumentDBOperation(ctx, "get_track", func(ctx context.Context) error {
		var err error

		result, err = s.store.GetTrack(ctx, trackID)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// FindTrackByRef looks a track up by its durable reference with telemetry.
func (s *InstrumentedCatalogStore) FindTrackByRef(ctx context.Context, ref string) (*storage.TrackRecord, error) {
	var result *storage.TrackRecord

	err := s.telemetry.InstrumentDBOperation(ctx, "find_track_by_ref", func(ctx context.Context) error {
		var err error

		result, err = s.store.FindTrackByRef(ctx, ref)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// StampFirstAccess stamps the first access time with telemetry.
func (s *InstrumentedCatalogStore) StampFirstAccess(ctx context.Context, trackID string, at time.Time) error {
	return s.telemetry.InstrumentDBOperation(ctx, "stamp_first_access", func(ctx context.Context) error {
		return s.store.StampFirstAccess(ctx, trackID, at)
	})
}

// MarkDownloaded records a durable reference with telemetry.
func (s *InstrumentedCatalogStore) MarkDownloaded(ctx context.Context, trackID, ref string, at time.Time) error {
	return s.telemetry.InstrumentDBOperation(ctx, "mark_downloaded", func(ctx context.Context) error {
		return s.store.MarkDownloaded(ctx, trackID, ref, at)
	})
}

// ClearDownload clears a durable reference with telemetry.
func (s *InstrumentedCatalogStore) ClearDownload(ctx context.Context, trackID string) error {
	return s.telemetry.InstrumentDBOperation(ctx, "clear_download", func(ctx context.Context) error {
		return s.store.ClearDownload(ctx, trackID)
	})
}

// ListDownloaded lists downloaded tracks with telemetry.
func (s *InstrumentedCatalogStore) ListDownloaded(ctx context.Context) ([]*storage.TrackRecord, error) {
	var result []*storage.TrackRecord

	err := s.telemetry.InstrumentDBOperation(ctx, "list_downloaded", func(ctx context.Context) error {
		var err error

		result, err = s.store.ListDownloaded(ctx)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// UpsertFormat inserts or updates a format with telemetry.
func (s *InstrumentedCatalogStore) UpsertFormat(ctx context.Context, record *storage.FormatRecord) error {
	return s.telemetry.InstrumentDBOperation(ctx, "upsert_format", func(ctx context.Context) error {
		return s.store.UpsertFormat(ctx, record)
	})
}

// GetFormat retrieves a format with telemetry.
func (s *InstrumentedCatalogStore) GetFormat(ctx context.Context, trackID string) (*storage.FormatRecord, error) {
	var result *storage.FormatRecord

	err := s.telemetry.InstrumentDBOperation(ctx, "get_format", func(ctx context.Context) error {
		var err error

		result, err = s.store.GetFormat(ctx, trackID)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Close releases the underlying store.
func (s *InstrumentedCatalogStore) Close() error {
	return s.store.Close()
}

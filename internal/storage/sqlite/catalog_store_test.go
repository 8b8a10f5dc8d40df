package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/trackvault/internal/storage"
	"github.com/oshokin/trackvault/internal/telemetry"
)

func newTestStore(t *testing.T) *CatalogStore {
	t.Helper()

	db, err := InitDB(context.Background(), filepath.Join(t.TempDir(), "nested", "catalog.db"))
	require.NoError(t, err)

	store := NewCatalogStore(db)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

// TestInitDB_Idempotent tests that the schema can be applied twice.
func TestInitDB_Idempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.db")

	db, err := InitDB(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = InitDB(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

// TestCatalogStore_Tracks tests track upserts and lookups.
func TestCatalogStore_Tracks(t *testing.T) {
	t.Parallel()

	var (
		store = newTestStore(t)
		ctx   = context.Background()
	)

	missing, err := store.GetTrack(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	record := &storage.TrackRecord{
		ID:              "t1",
		Title:           "Song",
		Artist:          "Band",
		Album:           "Record",
		DurationSeconds: 200,
		Year:            2010,
		ThumbnailURL:    "https://img.example/1.jpg",
	}

	require.NoError(t, store.UpsertTrack(ctx, record))

	record.Title = "Song (Remastered)"
	require.NoError(t, store.UpsertTrack(ctx, record))

	got, err := store.GetTrack(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "Song (Remastered)", got.Title)
	assert.Equal(t, "Band", got.Artist)
	assert.Equal(t, int64(200), got.DurationSeconds)
	assert.Equal(t, 2010, got.Year)
	assert.False(t, got.IsDownloaded())
	assert.Nil(t, got.DownloadedAt)
	assert.Nil(t, got.FirstAccessedAt)
}

// TestCatalogStore_Downloads tests the durable download reference lifecycle.
func TestCatalogStore_Downloads(t *testing.T) {
	t.Parallel()

	var (
		store = newTestStore(t)
		ctx   = context.Background()
		at    = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	)

	require.NoError(t, store.UpsertTrack(ctx, &storage.TrackRecord{ID: "t1", Title: "One"}))
	require.NoError(t, store.MarkDownloaded(ctx, "t1", "/music/one.mp3", at))

	// Marking a track that has no record yet creates it.
	require.NoError(t, store.MarkDownloaded(ctx, "t2", "/music/two.mp3", at.Add(time.Minute)))

	// Metadata upserts keep the download reference.
	require.NoError(t, store.UpsertTrack(ctx, &storage.TrackRecord{ID: "t1", Title: "One again"}))

	downloaded, err := store.ListDownloaded(ctx)
	require.NoError(t, err)
	require.Len(t, downloaded, 2)

	assert.Equal(t, "t1", downloaded[0].ID)
	assert.Equal(t, "One again", downloaded[0].Title)
	assert.Equal(t, "/music/one.mp3", downloaded[0].DownloadRef)
	require.NotNil(t, downloaded[0].DownloadedAt)
	assert.True(t, at.Equal(*downloaded[0].DownloadedAt))
	assert.Equal(t, "t2", downloaded[1].ID)

	require.NoError(t, store.ClearDownload(ctx, "t1"))

	got, err := store.GetTrack(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, got.IsDownloaded())
	assert.Nil(t, got.DownloadedAt)

	downloaded, err = store.ListDownloaded(ctx)
	require.NoError(t, err)
	require.Len(t, downloaded, 1)
	assert.Equal(t, "t2", downloaded[0].ID)

	owner, err := store.FindTrackByRef(ctx, "/music/two.mp3")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, "t2", owner.ID)

	// A cleared reference no longer has an owner.
	owner, err = store.FindTrackByRef(ctx, "/music/one.mp3")
	require.NoError(t, err)
	assert.Nil(t, owner)
}

// TestCatalogStore_StampFirstAccess tests that the first access time is set only once.
func TestCatalogStore_StampFirstAccess(t *testing.T) {
	t.Parallel()

	var (
		store = newTestStore(t)
		ctx   = context.Background()
		first = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	)

	require.NoError(t, store.UpsertTrack(ctx, &storage.TrackRecord{ID: "t1"}))
	require.NoError(t, store.StampFirstAccess(ctx, "t1", first))
	require.NoError(t, store.StampFirstAccess(ctx, "t1", first.Add(time.Hour)))

	got, err := store.GetTrack(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got.FirstAccessedAt)
	assert.True(t, first.Equal(*got.FirstAccessedAt))
}

// TestCatalogStore_Formats tests format upserts and lookups.
func TestCatalogStore_Formats(t *testing.T) {
	t.Parallel()

	var (
		store    = newTestStore(t)
		ctx      = context.Background()
		loudness = -7.5
	)

	missing, err := store.GetFormat(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.UpsertFormat(ctx, &storage.FormatRecord{
		TrackID:       "t1",
		Tag:           251,
		MimeType:      "audio/webm",
		Codecs:        "opus",
		Bitrate:       160000,
		SampleRate:    48000,
		ContentLength: 4096,
		LoudnessDB:    &loudness,
		PlaybackURL:   "https://cdn.example/1",
	}))

	require.NoError(t, store.UpsertFormat(ctx, &storage.FormatRecord{
		TrackID:     "t1",
		Tag:         140,
		MimeType:    "audio/mp4",
		PlaybackURL: "https://cdn.example/2",
	}))

	got, err := store.GetFormat(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, 140, got.Tag)
	assert.Equal(t, "audio/mp4", got.MimeType)
	assert.Equal(t, "https://cdn.example/2", got.PlaybackURL)
	assert.Nil(t, got.LoudnessDB)
	assert.False(t, got.UpdatedAt.IsZero())
}

// TestInstrumentedCatalogStore tests that the wrapper delegates to the store.
func TestInstrumentedCatalogStore(t *testing.T) {
	t.Parallel()

	tel, err := telemetry.New(context.Background(), telemetry.Config{Enabled: true, ServiceName: "sqlite-test"})
	require.NoError(t, err)

	var (
		store = NewInstrumented(newTestStore(t), tel)
		ctx   = context.Background()
	)

	require.NoError(t, store.UpsertTrack(ctx, &storage.TrackRecord{ID: "t1", Title: "One"}))
	require.NoError(t, store.MarkDownloaded(ctx, "t1", "/music/one.mp3", time.Now()))
	require.NoError(t, store.StampFirstAccess(ctx, "t1", time.Now()))
	require.NoError(t, store.UpsertFormat(ctx, &storage.FormatRecord{TrackID: "t1", Tag: 1}))

	got, err := store.GetTrack(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, got.IsDownloaded())

	format, err := store.GetFormat(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, format.Tag)

	downloaded, err := store.ListDownloaded(ctx)
	require.NoError(t, err)
	assert.Len(t, downloaded, 1)

	require.NoError(t, store.ClearDownload(ctx, "t1"))

	// A nil telemetry still delegates.
	plain := NewInstrumented(newTestStore(t), nil)

	missing, err := plain.GetTrack(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

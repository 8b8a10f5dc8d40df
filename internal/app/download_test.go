package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/oshokin/trackvault/internal/service/download"
	"github.com/oshokin/trackvault/internal/storage"
	mock_storage "github.com/oshokin/trackvault/internal/storage/mocks"
)

func newDurableStates(t *testing.T, downloaded ...string) *download.StateStore {
	t.Helper()

	var (
		ctrl    = gomock.NewController(t)
		store   = mock_storage.NewMockCatalogStore(ctrl)
		at      = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		records = make([]*storage.TrackRecord, 0, len(downloaded))
	)

	for _, trackID := range downloaded {
		records = append(records, &storage.TrackRecord{
			ID:           trackID,
			DownloadRef:  "/music/" + trackID + ".mp3",
			DownloadedAt: &at,
		})
	}

	store.EXPECT().ListDownloaded(gomock.Any()).Return(records, nil)

	states := download.NewStateStore(store)
	require.NoError(t, states.Refresh(context.Background()))

	return states
}

// TestWaitForTracks tests that the wait ends once every track is terminal.
func TestWaitForTracks(t *testing.T) {
	t.Parallel()

	states := newDurableStates(t, "a", "b")

	var progress []int

	summary := WaitForTracks(context.Background(), states, []string{"a", "b"}, func(done int) {
		progress = append(progress, done)
	})

	assert.Equal(t, []int{2}, progress)
	assert.Equal(t, &DownloadSummary{
		Requested: 2,
		Completed: 2,
		Failed:    map[string]string{},
	}, summary)
}

// TestWaitForTracks_Interrupted tests that a done context ends the wait with pending tracks.
func TestWaitForTracks_Interrupted(t *testing.T) {
	t.Parallel()

	states := newDurableStates(t, "a")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	summary := WaitForTracks(ctx, states, []string{"a", "b"}, nil)

	assert.True(t, summary.Interrupted)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.Pending)
}

// TestSummarize tests the classification of track states.
func TestSummarize(t *testing.T) {
	t.Parallel()

	view := map[string]download.State{
		"done":    {TrackID: "done", Status: download.StatusCompleted},
		"broken":  {TrackID: "broken", Status: download.StatusFailed, Error: "boom"},
		"stopped": {TrackID: "stopped", Status: download.StatusCancelled},
		"waiting": {TrackID: "waiting", Status: download.StatusQueued},
		"running": {TrackID: "running", Status: download.StatusDownloading},
	}

	summary := summarize(view, []string{"done", "broken", "stopped", "waiting", "running", "unknown"}, false)

	assert.Equal(t, &DownloadSummary{
		Requested: 6,
		Completed: 1,
		Failed:    map[string]string{"broken": "boom"},
		Cancelled: 1,
		Pending:   3,
	}, summary)
	assert.Equal(t, 3, countTerminal(view, []string{"done", "broken", "stopped", "waiting"}))
}

// TestUniqueTrackIDs tests the uniqueTrackIDs function.
func TestUniqueTrackIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "Empty", input: nil, want: []string{}},
		{name: "Order kept", input: []string{"b", "a"}, want: []string{"b", "a"}},
		{name: "Duplicates removed", input: []string{"a", "b", "a"}, want: []string{"a", "b"}},
		{name: "Blank skipped", input: []string{" ", "a ", "\ta"}, want: []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, uniqueTrackIDs(tt.input))
		})
	}
}

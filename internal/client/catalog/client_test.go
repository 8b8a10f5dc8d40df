package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/trackvault/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&config.Config{
		AuthToken:         "secret-token",
		ResolverBaseURL:   server.URL,
		ParsedHTTPTimeout: 5 * time.Second,
		TrackCacheSize:    16,
		Referer:           "https://player.example/",
	})
	require.NoError(t, err)

	return client
}

// TestResolveStream tests the ResolveStream method.
func TestResolveStream(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		formatTag   int
		status      int
		body        string
		expectedErr error
		expectedURL string
	}{
		{
			name:        "default format",
			status:      http.StatusOK,
			body:        `{"result":{"url":"https://cdn.example/a","expires_in_seconds":3600,"format":{"tag":251,"mime_type":"audio/webm","bitrate":160000,"content_length":1234}}}`,
			expectedURL: "https://cdn.example/a",
		},
		{
			name:        "pinned format",
			formatTag:   140,
			status:      http.StatusOK,
			body:        `{"result":{"url":"https://cdn.example/b","expires_in_seconds":60,"format":{"tag":140,"mime_type":"audio/mp4"}}}`,
			expectedURL: "https://cdn.example/b",
		},
		{
			name:        "not found is unavailable",
			status:      http.StatusNotFound,
			body:        `{}`,
			expectedErr: ErrStreamUnavailable,
		},
		{
			name:        "empty url is unavailable",
			status:      http.StatusOK,
			body:        `{"result":{"url":""}}`,
			expectedErr: ErrStreamUnavailable,
		},
		{
			name:        "server error",
			status:      http.StatusInternalServerError,
			body:        `{}`,
			expectedErr: ErrUnexpectedHTTPStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/stream", r.URL.Path)
				assert.Equal(t, "track-1", r.URL.Query().Get("id"))

				if tt.formatTag > 0 {
					assert.Equal(t, "140", r.URL.Query().Get("format"))
				} else {
					assert.Empty(t, r.URL.Query().Get("format"))
				}

				cookie, err := r.Cookie("auth")
				if assert.NoError(t, err) {
					assert.Equal(t, "secret-token", cookie.Value)
				}

				assert.Equal(t, "https://player.example/", r.Header.Get("Referer"))
				assert.NotEmpty(t, r.Header.Get("User-Agent"))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			result, err := client.ResolveStream(context.Background(), "track-1", tt.formatTag)

			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, result)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedURL, result.URL)
		})
	}
}

// TestResolveStream_EmptyTrackID tests that an empty track ID is rejected without a request.
func TestResolveStream_EmptyTrackID(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	}))

	_, err := client.ResolveStream(context.Background(), "", 0)
	require.ErrorIs(t, err, ErrEmptyTrackID)
}

// TestGetTrack tests the GetTrack method and its cache.
func TestGetTrack(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		assert.Equal(t, "/api/v1/graphql", r.URL.Path)
		assert.Equal(t, "secret-token", r.Header.Get("X-Auth-Token"))

		var request struct {
			Variables map[string]any `json:"variables"`
		}

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.Equal(t, "track-7", request.Variables["id"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"getTracks":[{"id":"track-7","title":"Song","duration":215,` +
			`"artists":[{"title":"First"},{"title":"Second"}],` +
			`"release":{"title":"Album","date":"2019-05-01","image":{"src":"https://img.example/c.jpg"}}}]}}`))
	}))

	for range 2 {
		track, err := client.GetTrack(context.Background(), "track-7")
		require.NoError(t, err)

		assert.Equal(t, "track-7", track.ID)
		assert.Equal(t, "Song", track.Title)
		assert.Equal(t, "First, Second", track.ArtistName())
		assert.Equal(t, "Album", track.Album)
		assert.Equal(t, 2019, track.Year)
		assert.Equal(t, int64(215), track.DurationSeconds)
		assert.Equal(t, "https://img.example/c.jpg", track.ThumbnailURL)
	}

	assert.Equal(t, int32(1), calls.Load(), "second lookup must be served from cache")
}

// TestGetTrack_NotFound tests the empty result case.
func TestGetTrack_NotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"getTracks":[]}}`))
	}))

	_, err := client.GetTrack(context.Background(), "missing")
	require.ErrorIs(t, err, ErrTrackNotFound)
}

// TestFetchStream tests the FetchStream method.
func TestFetchStream(t *testing.T) {
	t.Parallel()

	const payload = "0123456789"

	tests := []struct {
		name           string
		offset         int64
		ignoreRange    bool
		expectedErr    error
		expectedBody   string
		expectedOffset int64
		expectedTotal  int64
	}{
		{
			name:           "whole stream",
			offset:         0,
			expectedBody:   payload,
			expectedOffset: 0,
			expectedTotal:  10,
		},
		{
			name:           "partial content",
			offset:         4,
			expectedBody:   "456789",
			expectedOffset: 4,
			expectedTotal:  10,
		},
		{
			name:           "range ignored by host",
			offset:         4,
			ignoreRange:    true,
			expectedBody:   payload,
			expectedOffset: 0,
			expectedTotal:  10,
		},
		{
			name:        "offset past the end",
			offset:      10,
			expectedErr: ErrRangeNotSatisfiable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.NotEmpty(t, r.Header.Get("Range"))

				if tt.ignoreRange {
					r.Header.Del("Range")
				}

				w.Header().Set("Content-Type", "audio/mpeg")
				http.ServeContent(w, r, "track.mp3", time.Time{}, strings.NewReader(payload))
			}))

			result, err := client.FetchStream(context.Background(), serverURLFrom(t, client)+"/media", tt.offset)

			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)

				return
			}

			require.NoError(t, err)

			defer result.Body.Close() //nolint:errcheck // Test cleanup, error is not critical.

			body, err := io.ReadAll(result.Body)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedBody, string(body))
			assert.Equal(t, tt.expectedOffset, result.Offset)
			assert.Equal(t, tt.expectedTotal, result.TotalBytes)
			assert.Equal(t, "audio/mpeg", result.MimeType)
		})
	}
}

// TestFetchStream_UnexpectedStatus tests classification of failed stream responses.
func TestFetchStream_UnexpectedStatus(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := client.FetchStream(context.Background(), serverURLFrom(t, client)+"/media", 0)
	require.ErrorIs(t, err, ErrUnexpectedHTTPStatus)

	var httpErr *HTTPError

	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.StatusCode)
}

// TestParseContentRange tests the Content-Range parser.
func TestParseContentRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header        string
		expectedStart int64
		expectedTotal int64
	}{
		{header: "bytes 0-9/10", expectedStart: 0, expectedTotal: 10},
		{header: "bytes 100-199/*", expectedStart: 100, expectedTotal: -1},
		{header: "", expectedStart: -1, expectedTotal: -1},
		{header: "items 1-2/3", expectedStart: -1, expectedTotal: -1},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			t.Parallel()

			start, total := parseContentRange(tt.header)
			assert.Equal(t, tt.expectedStart, start)
			assert.Equal(t, tt.expectedTotal, total)
		})
	}
}

// TestTrack_ArtistName tests the ArtistName fallback.
func TestTrack_ArtistName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, UnknownArtistName, (&Track{}).ArtistName())
	assert.Equal(t, UnknownArtistName, (&Track{Artists: []string{" ", ""}}).ArtistName())
	assert.Equal(t, "Solo", (&Track{Artists: []string{"Solo"}}).ArtistName())
}

func serverURLFrom(t *testing.T, client Client) string {
	t.Helper()

	impl, ok := client.(*ClientImpl)
	require.True(t, ok)

	return impl.baseURL
}

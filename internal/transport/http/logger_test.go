package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/trackvault/internal/logger"
)

// TestRedactURL tests that sensitive query parameters are masked.
func TestRedactURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		rawURL   string
		expected string
	}{
		{
			name:     "no query",
			rawURL:   "https://cdn.example/track.m4a",
			expected: "https://cdn.example/track.m4a",
		},
		{
			name:     "signature and expiry",
			rawURL:   "https://cdn.example/v?expire=123&id=42&sig=secret",
			expected: "https://cdn.example/v?expire=REDACTED&id=42&sig=REDACTED",
		},
		{
			name:     "case insensitive keys",
			rawURL:   "https://cdn.example/v?Token=abc",
			expected: "https://cdn.example/v?Token=REDACTED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u, err := url.Parse(tt.rawURL)
			require.NoError(t, err)

			assert.Equal(t, tt.expected, RedactURL(u))
		})
	}

	assert.Empty(t, RedactURL(nil))
}

// TestLogTransport_RoundTrip tests that the transport forwards requests at every log level.
//
//nolint:paralleltest // Changes the global log level.
func TestLogTransport_RoundTrip(t *testing.T) {
	originalLevel := logger.Level()
	defer logger.SetLevel(originalLevel)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("binary-audio"))
	}))
	defer server.Close()

	for _, level := range []zapcore.Level{zapcore.InfoLevel, zapcore.DebugLevel} {
		logger.SetLevel(level)

		transport := NewLogTransport(http.DefaultTransport, 16)

		req, err := http.NewRequest(http.MethodGet, server.URL+"?sig=abc", http.NoBody) //nolint:noctx // Test code.
		require.NoError(t, err)

		resp, err := transport.RoundTrip(req)
		require.NoError(t, err)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		resp.Body.Close() //nolint:errcheck,gosec // Test cleanup, error is not critical.

		assert.Equal(t, "binary-audio", string(body), "body must be intact after logging")
	}
}

// TestLogTransport_NilRequest tests that a nil request is rejected.
func TestLogTransport_NilRequest(t *testing.T) {
	t.Parallel()

	resp, err := NewLogTransport(http.DefaultTransport, 0).RoundTrip(nil) //nolint:bodyclose // Nil on error.
	require.ErrorIs(t, err, ErrNilRequest)
	assert.Nil(t, resp)
}

// TestLogTransport_Truncate tests that long dumps are truncated.
func TestLogTransport_Truncate(t *testing.T) {
	t.Parallel()

	transport, ok := NewLogTransport(http.DefaultTransport, 4).(*LogTransport)
	require.True(t, ok)

	assert.Equal(t, "abcd... [truncated]", transport.truncate("abcdef"))
	assert.Equal(t, "ab", transport.truncate("ab"))
}

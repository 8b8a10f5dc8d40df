package stream

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/trackvault/internal/constants"
)

// TestByteRangeCache_WriteAndRead tests reading back written bytes.
func TestByteRangeCache_WriteAndRead(t *testing.T) {
	t.Parallel()

	cache, err := NewByteRangeCache(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, cache.Write("t1", 0, []byte("hello ")))
	require.NoError(t, cache.Write("t1", 6, []byte("world")))

	assert.Equal(t, []Span{{Start: 0, End: 11}}, cache.Spans("t1"))
	assert.True(t, cache.IsCached("t1", 0, 11))
	assert.True(t, cache.IsCached("t1", 3, 5))
	assert.False(t, cache.IsCached("t1", 3, 20))

	buf := make([]byte, 5)
	n, err := cache.ReadAt("t1", buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf[:n]))
}

// TestByteRangeCache_Gaps tests that ranges spanning a gap are not reported as cached.
func TestByteRangeCache_Gaps(t *testing.T) {
	t.Parallel()

	cache, err := NewByteRangeCache(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, cache.Write("t1", 0, []byte("abcd")))
	require.NoError(t, cache.Write("t1", 10, []byte("klmn")))

	assert.Equal(t, []Span{{Start: 0, End: 4}, {Start: 10, End: 14}}, cache.Spans("t1"))
	assert.False(t, cache.IsCached("t1", 2, 10))

	_, err = cache.ReadAt("t1", make([]byte, 10), 2)
	require.ErrorIs(t, err, ErrNotCached)

	// Filling the gap joins both spans.
	require.NoError(t, cache.Write("t1", 4, []byte("efghij")))
	assert.Equal(t, []Span{{Start: 0, End: 14}}, cache.Spans("t1"))
	assert.True(t, cache.IsCached("t1", 2, 10))
}

// TestByteRangeCache_ToEnd tests open-ended ranges against the known total.
func TestByteRangeCache_ToEnd(t *testing.T) {
	t.Parallel()

	cache, err := NewByteRangeCache(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, cache.Write("t1", 0, []byte("0123456789")))

	assert.False(t, cache.IsCached("t1", 4, 0), "an open-ended range needs a known total")

	cache.SetTotal("t1", 10)
	assert.True(t, cache.IsCached("t1", 4, 0))
	assert.Equal(t, int64(10), cache.Total("t1"))

	cache.SetTotal("t1", 12)
	assert.False(t, cache.IsCached("t1", 4, 0))

	buf := make([]byte, 8)
	n, err := cache.ReadAt("t1", buf, 6)
	require.ErrorIs(t, err, ErrNotCached)
	assert.Zero(t, n)

	cache.SetTotal("t1", 10)
	n, err = cache.ReadAt("t1", buf, 6)
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "6789", string(buf[:n]))
}

// TestByteRangeCache_Remove tests that removal drops the spans and the file.
func TestByteRangeCache_Remove(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cache, err := NewByteRangeCache(dir)
	require.NoError(t, err)

	require.NoError(t, cache.Write("t1", 0, []byte("abc")))
	require.NoError(t, cache.Remove("t1"))

	assert.Nil(t, cache.Spans("t1"))
	assert.False(t, cache.IsCached("t1", 0, 3))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Removing twice is fine.
	require.NoError(t, cache.Remove("t1"))
}

// TestByteRangeCache_DistinctIDs tests that ids with the same sanitized form keep separate bytes.
func TestByteRangeCache_DistinctIDs(t *testing.T) {
	t.Parallel()

	cache, err := NewByteRangeCache(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, cache.Write("a/b", 0, []byte("AAAA")))
	require.NoError(t, cache.Write("a_b", 0, []byte("BBBB")))

	buf := make([]byte, 4)
	n, err := cache.ReadAt("a/b", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "AAAA", string(buf[:n]))

	require.NoError(t, cache.Remove("a_b"))

	assert.True(t, cache.IsCached("a/b", 0, 4))

	n, err = cache.ReadAt("a/b", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "AAAA", string(buf[:n]))
}

// TestNewByteRangeCache_DropsStaleFiles tests that files of a previous process are removed.
func TestNewByteRangeCache_DropsStaleFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stale := filepath.Join(dir, "old"+rangeCacheExtension)
	other := filepath.Join(dir, "keep.txt")

	require.NoError(t, os.WriteFile(stale, []byte("x"), constants.DefaultFilePermissions))
	require.NoError(t, os.WriteFile(other, []byte("x"), constants.DefaultFilePermissions))

	_, err := NewByteRangeCache(dir)
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, other)
}

// TestByteRangeCache_InvalidWrite tests rejecting negative offsets.
func TestByteRangeCache_InvalidWrite(t *testing.T) {
	t.Parallel()

	cache, err := NewByteRangeCache(t.TempDir())
	require.NoError(t, err)

	require.ErrorIs(t, cache.Write("t1", -1, []byte("x")), ErrInvalidRange)
	require.NoError(t, cache.Write("t1", 0, nil))
	assert.Nil(t, cache.Spans("t1"))
}

// TestMergeSpan tests span merging.
func TestMergeSpan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		spans    []Span
		span     Span
		expected []Span
	}{
		{
			name:     "empty",
			span:     Span{Start: 5, End: 10},
			expected: []Span{{Start: 5, End: 10}},
		},
		{
			name:     "before",
			spans:    []Span{{Start: 20, End: 30}},
			span:     Span{Start: 5, End: 10},
			expected: []Span{{Start: 5, End: 10}, {Start: 20, End: 30}},
		},
		{
			name:     "after",
			spans:    []Span{{Start: 0, End: 3}},
			span:     Span{Start: 5, End: 10},
			expected: []Span{{Start: 0, End: 3}, {Start: 5, End: 10}},
		},
		{
			name:     "adjacent",
			spans:    []Span{{Start: 0, End: 5}, {Start: 10, End: 12}},
			span:     Span{Start: 5, End: 10},
			expected: []Span{{Start: 0, End: 12}},
		},
		{
			name:     "covering several",
			spans:    []Span{{Start: 1, End: 2}, {Start: 4, End: 5}, {Start: 20, End: 25}},
			span:     Span{Start: 0, End: 10},
			expected: []Span{{Start: 0, End: 10}, {Start: 20, End: 25}},
		},
		{
			name:     "inside",
			spans:    []Span{{Start: 0, End: 100}},
			span:     Span{Start: 10, End: 20},
			expected: []Span{{Start: 0, End: 100}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, mergeSpan(tt.spans, tt.span))
		})
	}
}

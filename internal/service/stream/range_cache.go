package stream

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/oshokin/trackvault/internal/constants"
)

// ByteRangeCache keeps the bytes played so far of each track in a sparse file per track.
// The span index lives in memory, so files left by a previous process are discarded on start.
type ByteRangeCache struct {
	// dir is the folder holding the sparse files.
	dir string
	// mu guards tracks and serializes file access.
	mu sync.Mutex
	// tracks maps a track id to its cached spans.
	tracks map[string]*rangeEntry
}

// rangeEntry describes the cached part of a single track.
type rangeEntry struct {
	// spans are sorted, non-overlapping and non-adjacent.
	spans []Span
	// total is the full stream size (0 if unknown).
	total int64
}

const rangeCacheExtension = ".range"

// NewByteRangeCache creates a byte-range cache in dir.
func NewByteRangeCache(dir string) (*ByteRangeCache, error) {
	if err := os.MkdirAll(dir, constants.DefaultFolderPermissions); err != nil {
		return nil, fmt.Errorf("failed to create range cache folder: %w", err)
	}

	stale, err := filepath.Glob(filepath.Join(dir, "*"+rangeCacheExtension))
	if err != nil {
		return nil, err
	}

	for _, path := range stale {
		_ = os.Remove(path)
	}

	return &ByteRangeCache{
		dir:    dir,
		tracks: make(map[string]*rangeEntry),
	}, nil
}

// IsCached reports whether [offset, offset+length) is fully cached.
// A length of zero or less means up to the end of the stream, which must be known.
func (c *ByteRangeCache) IsCached(trackID string, offset, length int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.tracks[trackID]
	if !ok || offset < 0 {
		return false
	}

	end := offset + length
	if length <= 0 {
		if entry.total <= 0 {
			return false
		}

		end = entry.total
	}

	if entry.total > 0 && end > entry.total {
		return false
	}

	if end <= offset {
		return false
	}

	for _, span := range entry.spans {
		if span.Start <= offset && end <= span.End {
			return true
		}
	}

	return false
}

// Write stores p at offset of the track.
func (c *ByteRangeCache) Write(trackID string, offset int64, p []byte) error {
	if offset < 0 {
		return ErrInvalidRange
	}

	if len(p) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	file, err := os.OpenFile(c.path(trackID), os.O_CREATE|os.O_WRONLY, constants.DefaultFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to open range cache file: %w", err)
	}

	if _, err = file.WriteAt(p, offset); err != nil {
		_ = file.Close()

		return fmt.Errorf("failed to write range cache file: %w", err)
	}

	if err = file.Close(); err != nil {
		return fmt.Errorf("failed to close range cache file: %w", err)
	}

	entry := c.entry(trackID)
	entry.spans = mergeSpan(entry.spans, Span{Start: offset, End: offset + int64(len(p))})

	return nil
}

// ReadAt reads cached bytes of the track into p starting at offset.
// It fails with ErrNotCached unless the whole read is cached, except for a short read at the end of the stream.
func (c *ByteRangeCache) ReadAt(trackID string, p []byte, offset int64) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.tracks[trackID]
	if !ok {
		return 0, ErrNotCached
	}

	want := int64(len(p))
	if entry.total > 0 && offset+want > entry.total {
		want = entry.total - offset
	}

	if want <= 0 {
		return 0, io.EOF
	}

	covered := false

	for _, span := range entry.spans {
		if span.Start <= offset && offset+want <= span.End {
			covered = true

			break
		}
	}

	if !covered {
		return 0, ErrNotCached
	}

	file, err := os.Open(c.path(trackID))
	if err != nil {
		return 0, fmt.Errorf("failed to open range cache file: %w", err)
	}

	defer file.Close() //nolint:errcheck // Read-only file, error on close is not critical here.

	n, err := file.ReadAt(p[:want], offset)
	if err == nil && want < int64(len(p)) {
		err = io.EOF
	}

	return n, err
}

// SetTotal records the full stream size of the track.
func (c *ByteRangeCache) SetTotal(trackID string, total int64) {
	if total <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entry(trackID).total = total
}

// Total returns the recorded full stream size of the track (0 if unknown).
func (c *ByteRangeCache) Total(trackID string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.tracks[trackID]; ok {
		return entry.total
	}

	return 0
}

// Spans returns a copy of the cached spans of the track.
func (c *ByteRangeCache) Spans(trackID string) []Span {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.tracks[trackID]
	if !ok {
		return nil
	}

	return slices.Clone(entry.spans)
}

// Remove drops every cached byte of the track.
func (c *ByteRangeCache) Remove(trackID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.tracks, trackID)

	if err := os.Remove(c.path(trackID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove range cache file: %w", err)
	}

	return nil
}

func (c *ByteRangeCache) entry(trackID string) *rangeEntry {
	entry, ok := c.tracks[trackID]
	if !ok {
		entry = new(rangeEntry)
		c.tracks[trackID] = entry
	}

	return entry
}

// path names the sparse file after a digest of the id, so distinct ids never share a file.
func (c *ByteRangeCache) path(trackID string) string {
	sum := sha256.Sum256([]byte(trackID))

	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+rangeCacheExtension)
}

// mergeSpan inserts span into sorted spans, joining overlapping and adjacent intervals.
func mergeSpan(spans []Span, span Span) []Span {
	merged := make([]Span, 0, len(spans)+1)

	for _, current := range spans {
		switch {
		case current.End < span.Start:
			merged = append(merged, current)
		case span.End < current.Start:
			merged = append(merged, span)
			span = current
		default:
			span = Span{Start: min(span.Start, current.Start), End: max(span.End, current.End)}
		}
	}

	return append(merged, span)
}

package stream

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RangeInvalidator drops locally cached bytes of a track.
type RangeInvalidator interface {
	// Remove drops every cached byte of the track.
	Remove(trackID string) error
}

// ResolutionCache maps track ids to resolved stream URLs until they expire.
type ResolutionCache struct {
	// entries holds the resolved streams keyed by track id.
	entries *lru.Cache[string, *ResolvedStream]
	// ranges is invalidated together with the resolution of a track.
	ranges RangeInvalidator
	// now returns the current time.
	now func() time.Time
}

// NewResolutionCache creates a cache holding at most size tracks.
// ranges may be nil when there is no local byte-range cache.
func NewResolutionCache(size int, ranges RangeInvalidator) (*ResolutionCache, error) {
	entries, err := lru.New[string, *ResolvedStream](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolution cache: %w", err)
	}

	return &ResolutionCache{
		entries: entries,
		ranges:  ranges,
		now:     time.Now,
	}, nil
}

// Get returns the cached stream of a track if it has not expired.
func (c *ResolutionCache) Get(trackID string) (*ResolvedStream, bool) {
	stream, ok := c.entries.Get(trackID)
	if !ok {
		return nil, false
	}

	if !stream.IsLive(c.now()) {
		// Only drop the entry that was read; a fresher one may have replaced it meanwhile.
		if current, found := c.entries.Peek(trackID); found && current == stream {
			c.entries.Remove(trackID)
		}

		return nil, false
	}

	copied := *stream

	return &copied, true
}

// Peek returns the cached stream of a track even if it has expired.
func (c *ResolutionCache) Peek(trackID string) (*ResolvedStream, bool) {
	stream, ok := c.entries.Peek(trackID)
	if !ok {
		return nil, false
	}

	copied := *stream

	return &copied, true
}

// Put stores a resolved stream, overwriting any previous entry of the track.
func (c *ResolutionCache) Put(stream *ResolvedStream) {
	if stream == nil || stream.TrackID == "" {
		return
	}

	copied := *stream
	c.entries.Add(stream.TrackID, &copied)
}

// PutURL stores a URL without format information that stays live for ttl.
func (c *ResolutionCache) PutURL(trackID, url string, ttl time.Duration) {
	c.Put(&ResolvedStream{
		TrackID:   trackID,
		URL:       url,
		ExpiresAt: c.now().Add(ttl),
	})
}

// Invalidate removes the cached stream and every locally cached byte of a track.
// The stream entry is dropped even when removing the cached bytes fails.
func (c *ResolutionCache) Invalidate(trackID string) error {
	c.entries.Remove(trackID)

	if c.ranges == nil {
		return nil
	}

	return c.ranges.Remove(trackID)
}

// Len returns the number of cached entries, including expired ones not read yet.
func (c *ResolutionCache) Len() int {
	return c.entries.Len()
}

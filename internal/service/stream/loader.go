package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/oshokin/trackvault/internal/client/catalog"
	"github.com/oshokin/trackvault/internal/logger"
)

// Loader opens byte ranges of tracks for playback.
// Bytes fetched upstream without a pinned format are kept in the byte-range cache.
type Loader struct {
	// interceptor decides where the bytes come from.
	interceptor Interceptor
	// client fetches upstream bytes.
	client catalog.Client
	// ranges is the local byte-range cache (optional).
	ranges *ByteRangeCache
}

// NewLoader creates a new loader.
func NewLoader(interceptor Interceptor, client catalog.Client, ranges *ByteRangeCache) *Loader {
	return &Loader{
		interceptor: interceptor,
		client:      client,
		ranges:      ranges,
	}
}

// OpenRange opens the requested byte range of a track. The caller must close the reader.
func (l *Loader) OpenRange(ctx context.Context, req *DataRequest) (*RangeReader, error) {
	spec, err := l.interceptor.Open(ctx, req)
	if err != nil {
		return nil, err
	}

	if spec.Local {
		return l.openLocal(spec)
	}

	result, err := l.client.FetchStream(ctx, spec.URL, spec.Offset)
	if err != nil {
		if errors.Is(err, catalog.ErrRangeNotSatisfiable) {
			return nil, ErrInvalidRange
		}

		return nil, fmt.Errorf("failed to fetch stream: %w", err)
	}

	mimeType := spec.MimeType
	if mimeType == "" {
		mimeType = result.MimeType
	}

	var body io.ReadCloser = result.Body

	if l.ranges != nil && spec.FormatOverride == 0 {
		l.ranges.SetTotal(spec.TrackID, result.TotalBytes)

		body = &cachingBody{
			ReadCloser: result.Body,
			ctx:        ctx,
			ranges:     l.ranges,
			trackID:    spec.TrackID,
			offset:     result.Offset,
		}
	}

	if spec.Length > 0 {
		body = &limitedBody{
			Reader: io.LimitReader(body, spec.Length),
			Closer: body,
		}
	}

	return &RangeReader{
		ReadCloser: body,
		Offset:     result.Offset,
		TotalBytes: result.TotalBytes,
		MimeType:   mimeType,
	}, nil
}

func (l *Loader) openLocal(spec *DataSpec) (*RangeReader, error) {
	total := l.ranges.Total(spec.TrackID)
	if total > 0 && spec.Offset >= total {
		return nil, ErrInvalidRange
	}

	length := spec.Length
	if length <= 0 {
		length = total - spec.Offset
	}

	section := io.NewSectionReader(&cachedTrack{ranges: l.ranges, trackID: spec.TrackID}, spec.Offset, length)

	totalBytes := total
	if totalBytes <= 0 {
		totalBytes = -1
	}

	return &RangeReader{
		ReadCloser: io.NopCloser(section),
		Offset:     spec.Offset,
		TotalBytes: totalBytes,
		Local:      true,
	}, nil
}

// cachedTrack reads one track from the byte-range cache.
type cachedTrack struct {
	ranges  *ByteRangeCache
	trackID string
}

// ReadAt implements io.ReaderAt.
func (t *cachedTrack) ReadAt(p []byte, off int64) (int, error) {
	return t.ranges.ReadAt(t.trackID, p, off)
}

// cachingBody copies every byte read from an upstream body into the byte-range cache.
type cachingBody struct {
	io.ReadCloser

	ctx     context.Context //nolint:containedctx // Used only for logging cache failures.
	ranges  *ByteRangeCache
	trackID string
	offset  int64
	failed  bool
}

// Read implements io.Reader.
func (b *cachingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 && !b.failed {
		if writeErr := b.ranges.Write(b.trackID, b.offset, p[:n]); writeErr != nil {
			// Playback goes on without caching the rest of the body.
			b.failed = true

			logger.Warnf(b.ctx, "Failed to cache bytes of track %s: %v", b.trackID, writeErr)
		}
	}

	b.offset += int64(n)

	return n, err
}

// limitedBody stops reading after the requested length and closes the underlying body.
type limitedBody struct {
	io.Reader
	io.Closer
}

package stream

import (
	"io"
	"time"

	"github.com/oshokin/trackvault/internal/client/catalog"
)

// ResolvedStream is a cached, time-limited direct media URL of a track.
type ResolvedStream struct {
	// TrackID is the track identifier.
	TrackID string
	// URL is the direct media URL.
	URL string
	// ExpiresAt is the instant after which URL must not be served.
	ExpiresAt time.Time
	// FormatTag identifies the encoding (0 means the resolver's default choice).
	FormatTag int
	// Format describes the encoding served at URL.
	Format catalog.StreamFormat
}

// IsLive reports whether the stream can still be served at now.
func (s *ResolvedStream) IsLive(now time.Time) bool {
	return s != nil && s.URL != "" && now.Before(s.ExpiresAt)
}

// DataRequest is one byte-range request for a track.
type DataRequest struct {
	// TrackID is the track identifier.
	TrackID string
	// Offset is the first requested byte.
	Offset int64
	// Length is the number of requested bytes; zero or less means up to the end of the stream.
	Length int64
	// FormatOverride pins a non-default encoding (0 means no override).
	FormatOverride int
}

// DataSpec tells the media loader where the requested bytes come from.
type DataSpec struct {
	// TrackID is the track identifier.
	TrackID string
	// Local is set when the bytes are served from the local byte-range cache.
	Local bool
	// URL is the rewritten upstream URL when Local is not set.
	URL string
	// Offset is the first requested byte.
	Offset int64
	// Length is the number of requested bytes; zero or less means up to the end of the stream.
	Length int64
	// FormatTag is the encoding of the served bytes.
	FormatTag int
	// FormatOverride is the pinned encoding in effect for the request (0 means none).
	FormatOverride int
	// MimeType is the MIME type of the served bytes (may be empty for local data).
	MimeType string
}

// RangeReader is an open byte range of a track.
type RangeReader struct {
	io.ReadCloser

	// Offset is the position of the first byte within the stream.
	Offset int64
	// TotalBytes is the full stream size (-1 if unknown).
	TotalBytes int64
	// MimeType is the MIME type of the stream.
	MimeType string
	// Local is set when the bytes come from the local byte-range cache.
	Local bool
}

// Span is a cached half-open byte interval [Start, End).
type Span struct {
	// Start is the first cached byte.
	Start int64
	// End is one past the last cached byte.
	End int64
}

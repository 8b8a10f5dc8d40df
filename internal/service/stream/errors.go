package stream

import "errors"

// Static error definitions for better error handling.
var (
	// ErrStreamUnavailable indicates that no playable URL could be obtained in time.
	ErrStreamUnavailable = errors.New("stream unavailable")
	// ErrEmptyTrackID indicates that a request carries no track identifier.
	ErrEmptyTrackID = errors.New("track ID cannot be empty")
	// ErrNotCached indicates that the requested bytes are not in the local byte-range cache.
	ErrNotCached = errors.New("byte range is not cached")
	// ErrInvalidRange indicates a negative offset or an offset past the end of the stream.
	ErrInvalidRange = errors.New("invalid byte range")
)

package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedHTTPStatus indicates an unexpected HTTP status code was received.
	ErrUnexpectedHTTPStatus = errors.New("unexpected HTTP status")
	// ErrStreamUnavailable indicates that the resolver reported the track as unplayable.
	ErrStreamUnavailable = errors.New("stream unavailable")
	// ErrTrackNotFound indicates that the catalogue has no track with the requested ID.
	ErrTrackNotFound = errors.New("track not found")
	// ErrRangeNotSatisfiable indicates that the requested offset is at or past the end of the stream.
	ErrRangeNotSatisfiable = errors.New("requested range not satisfiable")
	// ErrEmptyTrackID indicates that an empty track ID was passed.
	ErrEmptyTrackID = errors.New("track ID cannot be empty")
)

// HTTPError describes a failed exchange with the catalogue service or a stream host.
type HTTPError struct {
	// Operation names the client call that failed.
	Operation string
	// StatusCode is the HTTP status received.
	StatusCode int
	// Err is the classified cause.
	Err error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %v", e.Operation, e.StatusCode, e.Err)
}

// Unwrap returns the classified cause.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

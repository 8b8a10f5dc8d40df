package download

import "errors"

// Static error definitions for better error handling.
var (
	// ErrTrackNotFound indicates that the durable catalogue has no record of the track.
	ErrTrackNotFound = errors.New("track not found")
	// ErrEmptyTrackID indicates that a track carries no identifier.
	ErrEmptyTrackID = errors.New("track ID cannot be empty")
	// ErrEmptyDownload indicates that a transfer produced no bytes.
	ErrEmptyDownload = errors.New("downloaded file is empty")
	// ErrIncompleteDownload indicates that fewer bytes than expected were transferred.
	ErrIncompleteDownload = errors.New("incomplete download")
	// ErrResumeNotSupported indicates that the stream host ignored a resume request.
	ErrResumeNotSupported = errors.New("stream host does not support resuming")
	// ErrTempFileWrite indicates that the temporary file rejected a write.
	ErrTempFileWrite = errors.New("failed to write temporary file")
	// ErrOrchestratorClosed indicates that the orchestrator no longer accepts work.
	ErrOrchestratorClosed = errors.New("orchestrator is closed")
)

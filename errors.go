package retouch

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("retouch: no store configured")
	ErrStoreClosed = errors.New("retouch: store closed")

	// Not found errors.
	ErrJobNotFound        = errors.New("retouch: job not found")
	ErrCheckpointNotFound = errors.New("retouch: checkpoint not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("retouch: job already exists")

	// State errors.
	ErrInvalidState       = errors.New("retouch: invalid state transition")
	ErrMaxRetriesExceeded = errors.New("retouch: max retries exceeded")

	// Dispatch protocol errors.
	ErrInvalidRequest  = errors.New("retouch: invalid dispatch request")
	ErrDispatchFailed  = errors.New("retouch: dispatch produced no job id")
	ErrMissingAPIKey   = errors.New("retouch: edit backend API key not configured")
	ErrBackendDisabled = errors.New("retouch: edit backend not configured")

	// Backend errors. ErrRateLimited marks a transient failure the retry
	// executor may repeat; anything else from the backend is fatal.
	ErrRateLimited = errors.New("retouch: edit backend rate limited")
)

package backend

import "errors"

// Sentinel errors for backend calls. Callers match with errors.Is; the
// wrapped message carries the backend name and cause.
var (
	// ErrUnavailable means the backend could not be reached at all.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrBackend means the backend answered but the reply was unusable.
	ErrBackend = errors.New("backend error")
	// ErrUnknownMode means no client is registered under the given mode.
	ErrUnknownMode = errors.New("unknown backend mode")
)

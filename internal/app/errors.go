package app

import "errors"

// Sentinel kinds for service errors.
var (
	// ErrTransient marks failures safe to retry: exhausted CAS retries
	// and inference round-trip failures. Nothing was mutated.
	ErrTransient = errors.New("transient failure")

	// ErrInvalidEventType rejects client events outside the allowed set.
	ErrInvalidEventType = errors.New("invalid client event type")
)

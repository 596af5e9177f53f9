package inference

import "errors"

// Sentinel kinds for inference errors. All collaborator failures collapse
// to a single transient kind; the caller retries by virtue of the next
// sampled frame, never synchronously.
var (
	ErrUnavailable = errors.New("inference service unavailable")
)

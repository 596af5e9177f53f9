package session

import "errors"

// Sentinel kinds for session state conflicts.
var (
	ErrAlreadySubmitted = errors.New("session already submitted")
	ErrNotInProgress    = errors.New("session is not in progress")
	ErrNotSubmitted     = errors.New("session has not been submitted")
	ErrAlreadyEvaluated = errors.New("session already evaluated")
	ErrNotEvaluated     = errors.New("session evaluation is not yet complete")
	ErrInvalidVerdict   = errors.New("invalid verdict")
	ErrVerdictFinal     = errors.New("verdict already submitted and cannot be changed")
	ErrAlreadyFinalized = errors.New("session already finalized")
)

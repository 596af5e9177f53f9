package repository

import "errors"

// Sentinel kinds for session store errors.
var (
	ErrNotFound          = errors.New("session not found")
	ErrExamNotFound      = errors.New("exam not found")
	ErrAlreadySubmitted  = errors.New("exam already completed by candidate")
	ErrSessionTerminated = errors.New("previous session for this exam was terminated")
	ErrVersionConflict   = errors.New("session version conflict")
)

package grading

import "errors"

// Sentinel kinds for grading errors.
var (
	ErrResponseNotFound = errors.New("response not found")
)

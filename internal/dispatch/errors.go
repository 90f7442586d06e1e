package dispatch

import "errors"

var (
	// ErrNotFound is returned for unknown job, task or agent ids.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for malformed or unsatisfiable requests.
	ErrInvalidInput = errors.New("invalid input")
)

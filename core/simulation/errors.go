package simulation

import "errors"

var (
	// ErrInvalidInput is returned when an input is non-positive, not finite or
	// outside the configured limits.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDegenerateResult is returned when the theoretical maximum power would
	// be zero, leaving the concurrency factor undefined.
	ErrDegenerateResult = errors.New("degenerate result")
	// ErrNotFound is returned by stores when no simulation has the given id.
	ErrNotFound = errors.New("simulation not found")
	// ErrAlreadyExists is returned by stores when Create reuses an id.
	ErrAlreadyExists = errors.New("simulation already exists")
	// ErrPersistence wraps store failures. The computed outputs remain valid.
	ErrPersistence = errors.New("persistence failed")
)

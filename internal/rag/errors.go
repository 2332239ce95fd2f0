package rag

import (
	"errors"
)

// Sentinel errors forming the pipeline's failure taxonomy. Callers match
// with [errors.Is]; concrete errors wrap these with contextual detail.
var (
	// ErrInvalidInput marks empty or malformed caller input. Surfaced
	// immediately, never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch marks a vector whose length differs from the
	// expected dimension. It is a kind of invalid input.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrIndexUnavailable marks a vector store that remained unreachable or
	// erroring after the retry budget was exhausted.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrNotFound marks a missing document or record id. A client error,
	// never retried.
	ErrNotFound = errors.New("not found")
)

// IsInvalidInput reports whether err is (or wraps) an invalid-input failure,
// including dimension mismatches.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrDimensionMismatch)
}

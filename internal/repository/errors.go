package repository

import "errors"

// Infrastructure-level errors shared by repository implementations.
// Domain-specific not-found conditions are reported with the matching
// domain sentinel instead.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("duplicate record")
)

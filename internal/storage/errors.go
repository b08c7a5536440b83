package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists. The transaction log and reward grants
	// are append-only; duplicates are rejected, never overwritten.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLockTimeout is returned when a unit of work could not acquire its
	// row locks within the configured bound. The unit is rolled back in full;
	// callers may retry.
	ErrLockTimeout = errors.New("lock timeout")
)

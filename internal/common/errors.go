// Package common defines shared sentinel errors used across the file
// lifecycle engine. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository/backend-level errors.
	ErrNotFound = errors.New("not found")

	// Validation errors (malformed key, empty payload, missing filename).
	ErrInvalidKey       = errors.New("invalid storage key")
	ErrEmptyPayload     = errors.New("empty payload")
	ErrFilenameRequired = errors.New("filename required")

	// ErrStorageBackend wraps underlying I/O failures of a storage backend.
	ErrStorageBackend = errors.New("storage backend error")

	// ErrRecordPersistence signals that the ledger write failed after the
	// bytes were already committed to the backend. The ingestor removes the
	// bytes before surfacing this error.
	ErrRecordPersistence = errors.New("ledger record persistence failed")
)

// SizeExceededError is returned when a stream grows past the caller-supplied
// ceiling. It carries the ceiling so callers can report the limit that was hit.
type SizeExceededError struct {
	Limit int64
}

func (e *SizeExceededError) Error() string {
	return fmt.Sprintf("file size exceeds limit of %d bytes", e.Limit)
}

// IsSizeExceeded reports whether err is (or wraps) a SizeExceededError.
func IsSizeExceeded(err error) bool {
	var se *SizeExceededError
	return errors.As(err, &se)
}

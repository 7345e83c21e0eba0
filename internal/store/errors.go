package store

import "errors"

var (
	// ErrNotFound is returned when no value is stored under a key.
	ErrNotFound = errors.New("not found")

	// ErrInvalidValue is returned when a value is not a JSON document.
	ErrInvalidValue = errors.New("value is not valid json")

	// ErrMissingKey is returned when the extension or key is empty.
	ErrMissingKey = errors.New("extension and key are required")
)

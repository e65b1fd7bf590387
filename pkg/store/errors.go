package store

import "errors"

// Common errors returned by the store package.
var (
	// ErrRecordNotFound is returned when no record exists for a key.
	ErrRecordNotFound = errors.New("record not found")

	// ErrInvalidRecord is returned when a record is nil or has an empty key.
	ErrInvalidRecord = errors.New("invalid record: task and directory IDs must not both be empty")

	// ErrEmptyPath is returned when no database path is configured.
	ErrEmptyPath = errors.New("database path must not be empty")
)

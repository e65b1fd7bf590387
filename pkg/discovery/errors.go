package discovery

import "errors"

// Common errors returned by the discovery package.
var (
	// ErrDirectoryNotFound is returned when a segment directory does not exist.
	ErrDirectoryNotFound = errors.New("segment directory not found")

	// ErrNoSegmentsFound is returned by callers when discovery yields nothing.
	ErrNoSegmentsFound = errors.New("no segment files found")
)

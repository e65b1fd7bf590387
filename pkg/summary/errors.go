package summary

import "errors"

// Common errors returned by the summary package.
var (
	// ErrEmptyCohort is returned when the control or MCP cohort has no sessions.
	ErrEmptyCohort = errors.New("no data available for either control or MCP sessions")

	// ErrMalformedDocument is returned when a summary document cannot be decoded.
	ErrMalformedDocument = errors.New("malformed summary document")
)

package segment

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by the segment package.
var (
	// ErrMissingAPICalls is returned when a segment has no apiCalls array.
	ErrMissingAPICalls = errors.New("malformed segment: apiCalls missing")

	// ErrMissingUserMessages is returned when a segment has no userMessages array.
	ErrMissingUserMessages = errors.New("malformed segment: userMessages missing")

	// ErrInvalidID is returned when an identifier is neither a string nor a number.
	ErrInvalidID = errors.New("invalid identifier: must be a string or number")

	// ErrMalformedJSON is returned when a segment document cannot be decoded.
	ErrMalformedJSON = errors.New("malformed segment JSON")

	// ErrEmptyDocument is returned when a file holds no segments.
	ErrEmptyDocument = errors.New("no segments in document")

	// ErrFileTooLarge is returned when a file exceeds the maximum size limit.
	ErrFileTooLarge = errors.New("file size exceeds maximum limit")
)

// LoadError provides context about a segment file that failed to load.
type LoadError struct {
	Path  string // File being loaded
	Index int    // Position in a segment array, -1 for a single object
	Err   error  // Underlying error
}

func (e *LoadError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("load %s[%d]: %v", e.Path, e.Index, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// PartialError reports the elements of a segment array that failed to
// decode. The segments that did decode are returned alongside it.
type PartialError struct {
	Failed []*LoadError
}

func (e *PartialError) Error() string {
	msgs := make([]string, len(e.Failed))
	for i, le := range e.Failed {
		msgs[i] = le.Error()
	}
	return fmt.Sprintf("%d segment(s) failed to decode: %s", len(e.Failed), strings.Join(msgs, "; "))
}

func (e *PartialError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, le := range e.Failed {
		errs[i] = le
	}
	return errs
}

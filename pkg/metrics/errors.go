package metrics

import (
	"errors"
	"fmt"
)

// Common errors returned by the metrics package.
var (
	// ErrExtraction is matched by every extraction failure.
	ErrExtraction = errors.New("metrics extraction failed")

	// ErrNilSegment is returned when Extract is called without a segment.
	ErrNilSegment = errors.New("nil segment")
)

// ExtractError describes a segment that could not be processed.
type ExtractError struct {
	TaskID string // Task identifier, if known
	Stage  string // Sub-computation that failed, if known
	Err    error  // Underlying error
}

func (e *ExtractError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("error calculating metrics for task %q (%s): %v", e.TaskID, e.Stage, e.Err)
	}
	return fmt.Sprintf("error calculating metrics for task %q: %v", e.TaskID, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

// Is reports ErrExtraction as a match so callers need not know the type.
func (e *ExtractError) Is(target error) bool {
	return target == ErrExtraction
}

// stageError tags a sub-computation failure with its name.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string {
	return e.stage + ": " + e.err.Error()
}

func (e *stageError) Unwrap() error {
	return e.err
}

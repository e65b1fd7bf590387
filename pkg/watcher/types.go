// Package watcher monitors segment directories for new or updated
// segment files.
//
// It uses fsnotify and coalesces bursts of writes to the same file
// into a single event, so a segment is only re-extracted once the
// writer has settled.
//
// Example usage:
//
//	w, err := watcher.New(watcher.Config{
//	    DebounceInterval: 250 * time.Millisecond,
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
//	if err := w.Start(ctx, []string{"~/segments"}); err != nil {
//	    log.Fatal(err)
//	}
//
//	for event := range w.Events() {
//	    fmt.Printf("Segment %s: %s\n", event.Path, event.Op)
//	}
package watcher

import (
	"context"
	"time"
)

// Op describes a segment file operation.
type Op uint32

// Segment file operations. Removals and renames are not reported
// because a vanished segment leaves its stored record untouched.
const (
	OpCreate Op = 1 << iota // Segment file created
	OpWrite                 // Segment file modified
)

// String returns a human-readable operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	default:
		return "UNKNOWN"
	}
}

// Event represents a settled change to a segment file.
type Event struct {
	// Path is the path to the segment file.
	Path string

	// DirectoryID is the name of the directory containing the file.
	DirectoryID string

	// Op is the first operation seen in the debounce window.
	Op Op

	// Timestamp is when the last raw event in the window occurred.
	Timestamp time.Time
}

// Watcher provides segment directory monitoring.
type Watcher interface {
	// Start begins watching the specified directories and their
	// subdirectories. It returns once the watches are registered;
	// events are delivered until ctx is cancelled or Stop is called.
	//
	// Missing paths are skipped. ErrInvalidPath is returned when none exist.
	Start(ctx context.Context, paths []string) error

	// Stop halts event processing.
	Stop() error

	// Events returns the channel of debounced segment events.
	// The channel is closed by Close.
	Events() <-chan Event

	// Errors returns the channel of non-fatal watcher errors.
	// The channel is closed by Close.
	Errors() <-chan error

	// Close stops the watcher and releases resources.
	Close() error
}

// Config contains watcher configuration.
type Config struct {
	// DebounceInterval is the quiet period before an event is emitted.
	// Events for the same file within this interval are coalesced.
	// Default: 250ms.
	DebounceInterval time.Duration

	// CircuitBreakerThreshold is the number of fsnotify errors after
	// which only ErrCircuitBreakerOpen is reported.
	// Default: 5.
	CircuitBreakerThreshold int

	// BufferSize is the capacity of the events channel.
	// Default: 100.
	BufferSize int
}

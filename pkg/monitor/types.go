// Package monitor keeps the record store in step with the segment
// directories.
//
// Sync discovers every segment file, extracts the ones whose size or
// modification time changed since they were last seen, and stores the
// resulting records. Start performs a Sync and then follows the
// directories with a watcher, ingesting each settled change.
//
// Example usage:
//
//	m := monitor.New(monitor.Config{
//	    SegmentDirs:      cfg.SegmentDirs,
//	    FallbackTestType: "control",
//	}, monitor.Deps{
//	    Discoverer: disc,
//	    Watcher:    w,
//	    Extractor:  ext,
//	    Store:      st,
//	}, log)
//	defer m.Close()
//
//	res, err := m.Sync(ctx)
package monitor

import (
	"context"
	"time"

	"github.com/0xmhha/session-metrics/pkg/discovery"
	"github.com/0xmhha/session-metrics/pkg/metrics"
	"github.com/0xmhha/session-metrics/pkg/store"
	"github.com/0xmhha/session-metrics/pkg/watcher"
)

// Skip reasons reported to an Observer.
const (
	SkipLoad    = "load"    // segment file could not be read or decoded
	SkipExtract = "extract" // extractor returned no record
)

// Config holds the configuration for the monitor.
type Config struct {
	// SegmentDirs are the directories watched by Start.
	SegmentDirs []string

	// FallbackTestType is passed to the extractor.
	FallbackTestType string

	// ExportPath, when set, is rewritten with the store contents after
	// every ingest that stored at least one record.
	ExportPath string
}

// Deps are the collaborators a monitor drives.
type Deps struct {
	Discoverer discovery.Discoverer
	Watcher    watcher.Watcher // only required by Start
	Extractor  metrics.Extractor
	Store      store.Store
	Observer   Observer // optional
}

// Observer receives per-segment outcomes, e.g. for process counters.
type Observer interface {
	SegmentExtracted(mode string)
	SegmentSkipped(reason string)
}

// Monitor ingests segment files into the record store.
type Monitor interface {
	// Sync ingests every discovered segment file that changed since it
	// was last seen. Per-file failures are logged and counted; only
	// discovery, storage and cancellation errors are returned.
	Sync(ctx context.Context) (Result, error)

	// IngestFile extracts and stores the segments of one file, unless
	// the store has already seen this exact version of it.
	IngestFile(ctx context.Context, file discovery.SegmentFile) (Result, error)

	// Start performs an initial Sync, then ingests watcher events in
	// the background until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop halts background ingestion.
	Stop() error

	// Updates delivers one Update per ingested watcher event.
	Updates() <-chan Update

	// Close stops the monitor and closes the Updates channel.
	Close() error
}

// Result counts the outcome of an ingest.
type Result struct {
	// Files is the number of segment files considered.
	Files int

	// Unchanged is the number of files skipped by fingerprint.
	Unchanged int

	// Failed is the number of files that could not be loaded.
	Failed int

	// Segments is the number of segments read, including ones that failed
	// to decode.
	Segments int

	// Extracted is the number of records stored.
	Extracted int

	// Skipped is the number of segments that failed to decode or that the
	// extractor rejected.
	Skipped int
}

// Add accumulates other into r.
func (r *Result) Add(other Result) {
	r.Files += other.Files
	r.Unchanged += other.Unchanged
	r.Failed += other.Failed
	r.Segments += other.Segments
	r.Extracted += other.Extracted
	r.Skipped += other.Skipped
}

// Update represents one ingested watcher event.
type Update struct {
	// Timestamp of the ingest
	Timestamp time.Time

	// Path of the segment file
	Path string

	// Op reported by the watcher
	Op watcher.Op

	// Result of ingesting the file
	Result Result

	// Records is the store size after the ingest
	Records int
}

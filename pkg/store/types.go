// Package store persists normalized session records and the
// fingerprints of segment files already extracted.
//
// The record collection is what downstream consumers fetch as
// summary.json. Records are keyed by "directoryId/taskId", so
// re-extracting a segment replaces its record.
//
// Example usage:
//
//	st, err := store.Open(store.Config{DBPath: "~/.config/session-metrics/metrics.db"}, log)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
//
//	if err := st.Put(rec); err != nil {
//	    log.Fatal(err)
//	}
//	_ = st.ExportJSON(os.Stdout)
package store

import (
	"io"
	"time"

	"github.com/0xmhha/session-metrics/pkg/metrics"
)

// Fingerprint identifies one version of a segment file.
type Fingerprint struct {
	Size    int64 `json:"size"`
	ModTime int64 `json:"mod_time"` // Unix nanoseconds
}

// Store provides record persistence.
type Store interface {
	// Put inserts or replaces a record under rec.Key().
	Put(rec *metrics.Record) error

	// Get returns the record stored under key, or ErrRecordNotFound.
	Get(key string) (*metrics.Record, error)

	// List returns all records ordered by key.
	List() ([]metrics.Record, error)

	// Delete removes a record. Deleting a missing key returns ErrRecordNotFound.
	Delete(key string) error

	// Count returns the number of stored records.
	Count() (int, error)

	// Seen reports whether path was last extracted at exactly fp.
	Seen(path string, fp Fingerprint) (bool, error)

	// MarkSeen records fp as the extracted version of path.
	MarkSeen(path string, fp Fingerprint) error

	// ExportJSON writes all records as a JSON array.
	ExportJSON(w io.Writer) error

	// Close releases the underlying database.
	Close() error
}

// Config contains store configuration.
type Config struct {
	// DBPath is the BoltDB file path. "~" is expanded.
	DBPath string

	// Timeout bounds waiting for the database file lock.
	// Default: 1s.
	Timeout time.Duration
}

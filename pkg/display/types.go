// Package display renders cohort comparisons and session records for
// the terminal or for machine consumption.
//
// Table and simple output show every report value with a "%" suffix,
// including "N/A%" when a baseline was zero. JSON output carries the
// raw report strings.
package display

import (
	"io"

	"github.com/0xmhha/session-metrics/pkg/metrics"
	"github.com/0xmhha/session-metrics/pkg/summary"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays output as aligned tables.
	FormatTable Format = "table"

	// FormatJSON displays output as JSON.
	FormatJSON Format = "json"

	// FormatSimple displays output as one line per item.
	FormatSimple Format = "simple"
)

// Formatter formats comparison results and session records.
type Formatter interface {
	// FormatSummary formats a cohort comparison.
	//
	// Parameters:
	//   - w: Output writer
	//   - s: Comparison to format
	//
	// Returns error if writing fails.
	FormatSummary(w io.Writer, s *summary.Summary) error

	// FormatRecords formats a per-session listing.
	//
	// Parameters:
	//   - w: Output writer
	//   - records: Records to list, in display order
	//
	// Returns error if writing fails.
	FormatRecords(w io.Writer, records []metrics.Record) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// ShowCohorts adds per-cohort averages below the report.
	// Default: false.
	ShowCohorts bool

	// Compact enables compact output (less whitespace).
	// Default: false.
	Compact bool
}

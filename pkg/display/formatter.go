package display

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/0xmhha/session-metrics/pkg/summary"
)

// New creates a new formatter based on configuration.
//
// Unknown formats fall back to FormatTable.
func New(cfg Config) Formatter {
	if cfg.Format == "" {
		cfg.Format = FormatTable
	}

	switch cfg.Format {
	case FormatJSON:
		return &jsonFormatter{config: cfg}
	case FormatSimple:
		return &simpleFormatter{config: cfg}
	case FormatTable:
		fallthrough
	default:
		return &tableFormatter{config: cfg}
	}
}

// ParseFormat converts a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatSimple:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Percent renders a report value the way the dashboard shows it.
func Percent(value string) string {
	return value + "%"
}

// reportRow is one labeled line of a report.
type reportRow struct {
	label string
	value string
}

// reportRows returns the report values in display order.
func reportRows(r summary.Report) []reportRow {
	return []reportRow{
		{"Time Efficiency", r.TimeEfficiency},
		{"API Calls Reduction", r.APICallsReduction},
		{"Interaction Reduction", r.InteractionReduction},
		{"Success Rate", r.SuccessRate},
	}
}

// formatNumber formats a number with thousand separators.
func formatNumber(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// formatFloat formats a float with specified precision.
func formatFloat(f float64, precision int) string {
	return strconv.FormatFloat(f, 'f', precision, 64)
}

// formatSeconds formats a millisecond duration as seconds.
func formatSeconds(ms int64) string {
	return formatFloat(float64(ms)/1000, 1) + "s"
}

// writeHeader writes a section header.
func writeHeader(w io.Writer, title string, compact bool) error {
	if compact {
		_, err := fmt.Fprintf(w, "%s\n", title)
		return err
	}

	_, err := fmt.Fprintf(w, "\n%s\n%s\n\n", title, strings.Repeat("=", len(title)))
	return err
}

package display

import (
	"io"

	"github.com/bytedance/sonic"

	"github.com/0xmhha/session-metrics/pkg/metrics"
	"github.com/0xmhha/session-metrics/pkg/summary"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

// FormatSummary implements Formatter.FormatSummary.
//
// Without ShowCohorts only the report object is written, matching the
// shape served at /metrics/report.json.
func (f *jsonFormatter) FormatSummary(w io.Writer, s *summary.Summary) error {
	if f.config.ShowCohorts {
		return f.encode(w, s)
	}
	return f.encode(w, s.Report)
}

// FormatRecords implements Formatter.FormatRecords.
func (f *jsonFormatter) FormatRecords(w io.Writer, records []metrics.Record) error {
	if records == nil {
		records = []metrics.Record{}
	}
	return f.encode(w, records)
}

func (f *jsonFormatter) encode(w io.Writer, v interface{}) error {
	encoder := sonic.ConfigStd.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}

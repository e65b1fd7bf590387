package display

import (
	"fmt"
	"io"

	"github.com/0xmhha/session-metrics/pkg/metrics"
	"github.com/0xmhha/session-metrics/pkg/summary"
)

// simpleFormatter formats output as simple text.
type simpleFormatter struct {
	config Config
}

// FormatSummary implements Formatter.FormatSummary.
func (f *simpleFormatter) FormatSummary(w io.Writer, s *summary.Summary) error {
	for _, r := range reportRows(s.Report) {
		if _, err := fmt.Fprintf(w, "%s: %s\n", r.label, Percent(r.value)); err != nil {
			return err
		}
	}

	if !f.config.ShowCohorts {
		return nil
	}

	for _, c := range []struct {
		name  string
		stats summary.CohortStats
	}{{"control", s.Control}, {"mcp", s.MCP}} {
		if _, err := fmt.Fprintf(w, "%s: %d sessions | avg %ss | %s api calls | %s interactions\n",
			c.name,
			c.stats.Sessions,
			formatFloat(c.stats.AvgDurationSeconds, 1),
			formatFloat(c.stats.AvgAPICalls, 1),
			formatFloat(c.stats.AvgInteractions, 1)); err != nil {
			return err
		}
	}

	return nil
}

// FormatRecords implements Formatter.FormatRecords.
func (f *simpleFormatter) FormatRecords(w io.Writer, records []metrics.Record) error {
	for _, rec := range records {
		if _, err := fmt.Fprintf(w, "%s [%s] %s - %d api calls, %s tokens, $%s\n",
			rec.Key(),
			rec.Mode,
			formatSeconds(rec.Duration),
			rec.APICalls,
			formatNumber(rec.TotalTokens),
			formatFloat(rec.Cost, 4)); err != nil {
			return err
		}
	}

	return nil
}

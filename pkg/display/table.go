package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/0xmhha/session-metrics/pkg/metrics"
	"github.com/0xmhha/session-metrics/pkg/summary"
)

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config
}

// FormatSummary implements Formatter.FormatSummary.
func (f *tableFormatter) FormatSummary(w io.Writer, s *summary.Summary) error {
	if err := writeHeader(w, "MCP vs Control", f.config.Compact); err != nil {
		return err
	}

	rows := make([][]string, 0, 4)
	for _, r := range reportRows(s.Report) {
		rows = append(rows, []string{r.label, Percent(r.value)})
	}

	if err := f.writeTable(w, []string{"Metric", "Change"}, rows); err != nil {
		return err
	}

	if !f.config.ShowCohorts {
		return nil
	}

	if err := writeHeader(w, "Cohort Averages", f.config.Compact); err != nil {
		return err
	}

	cohorts := [][]string{
		cohortRow("control", s.Control),
		cohortRow("mcp", s.MCP),
	}

	return f.writeTable(w,
		[]string{"Cohort", "Sessions", "Duration", "API Calls", "Interactions", "Tokens", "Cost", "Success"},
		cohorts)
}

func cohortRow(name string, c summary.CohortStats) []string {
	return []string{
		name,
		formatNumber(c.Sessions),
		formatFloat(c.AvgDurationSeconds, 1) + "s",
		formatFloat(c.AvgAPICalls, 1),
		formatFloat(c.AvgInteractions, 1),
		formatFloat(c.AvgTokens, 0),
		"$" + formatFloat(c.AvgCost, 4),
		formatFloat(c.SuccessRate, 0) + "%",
	}
}

// FormatRecords implements Formatter.FormatRecords.
func (f *tableFormatter) FormatRecords(w io.Writer, records []metrics.Record) error {
	if err := writeHeader(w, "Sessions", f.config.Compact); err != nil {
		return err
	}

	header := []string{"Directory", "Task", "Mode", "Duration", "API Calls", "Tokens In", "Tokens Out", "Cost"}

	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = []string{
			rec.DirectoryID,
			rec.TaskID,
			rec.Mode,
			formatSeconds(rec.Duration),
			formatNumber(rec.APICalls),
			formatNumber(rec.TokensIn),
			formatNumber(rec.TokensOut),
			"$" + formatFloat(rec.Cost, 4),
		}
	}

	return f.writeTable(w, header, rows)
}

// writeTable writes a formatted table.
func (f *tableFormatter) writeTable(w io.Writer, header []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	if err := f.writeRow(w, header, widths); err != nil {
		return err
	}

	if !f.config.Compact {
		separator := make([]string, len(header))
		for i, width := range widths {
			separator[i] = strings.Repeat("-", width)
		}
		if err := f.writeRow(w, separator, widths); err != nil {
			return err
		}
	}

	for _, row := range rows {
		if err := f.writeRow(w, row, widths); err != nil {
			return err
		}
	}

	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}

	return nil
}

// writeRow writes a single table row. Trailing padding is trimmed.
func (f *tableFormatter) writeRow(w io.Writer, cells []string, widths []int) error {
	gap := "  "
	if f.config.Compact {
		gap = " "
	}

	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString(gap)
		}
		fmt.Fprintf(&b, "%-*s", widths[i], cell)
	}

	_, err := fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	return err
}

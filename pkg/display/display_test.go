package display

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/session-metrics/pkg/metrics"
	"github.com/0xmhha/session-metrics/pkg/summary"
)

func testSummary() *summary.Summary {
	return &summary.Summary{
		Report: summary.Report{
			TimeEfficiency:       "-50.0",
			APICallsReduction:    "-66.7",
			InteractionReduction: "0.0",
			SuccessRate:          "100",
		},
		Control: summary.CohortStats{Sessions: 2, AvgDurationSeconds: 120, AvgAPICalls: 12, AvgInteractions: 1, AvgTokens: 4000, AvgCost: 0.05, SuccessRate: 100},
		MCP:     summary.CohortStats{Sessions: 3, AvgDurationSeconds: 60, AvgAPICalls: 4, AvgInteractions: 1, AvgTokens: 2500, AvgCost: 0.03, SuccessRate: 100},
	}
}

func testRecords() []metrics.Record {
	return []metrics.Record{
		{TaskID: "1", DirectoryID: "run-a", Mode: metrics.ModeControl, Duration: 90500, APICalls: 12, TokensIn: 1200, TokensOut: 300, TotalTokens: 1500, Cost: 0.0168},
		{TaskID: "2", DirectoryID: "run-a", Mode: metrics.ModeMCP, Duration: 45000, APICalls: 4, TokensIn: 800, TokensOut: 200, TotalTokens: 1000, Cost: 0.0112},
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{"default format (table)", Config{}, "*display.tableFormatter"},
		{"table format", Config{Format: FormatTable}, "*display.tableFormatter"},
		{"json format", Config{Format: FormatJSON}, "*display.jsonFormatter"},
		{"simple format", Config{Format: FormatSimple}, "*display.simpleFormatter"},
		{"unknown falls back to table", Config{Format: "xml"}, "*display.tableFormatter"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, fmt.Sprintf("%T", New(tt.config)))
		})
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" simple ", FormatSimple, false},
		{"xml", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPercent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "-50.0%", Percent("-50.0"))
	assert.Equal(t, "N/A%", Percent(summary.NotAvailable))
}

func TestTableFormatter_FormatSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, New(Config{Format: FormatTable}).FormatSummary(&buf, testSummary()))

	out := buf.String()
	for _, want := range []string{"MCP vs Control", "Time Efficiency", "-50.0%", "-66.7%", "0.0%", "100%"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Cohort Averages")
}

func TestTableFormatter_FormatSummaryWithCohorts(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, New(Config{ShowCohorts: true}).FormatSummary(&buf, testSummary()))

	out := buf.String()
	assert.Contains(t, out, "Cohort Averages")
	assert.Contains(t, out, "120.0s")
	assert.Contains(t, out, "$0.0300")
}

func TestTableFormatter_NotAvailable(t *testing.T) {
	t.Parallel()

	s := testSummary()
	s.Report.TimeEfficiency = summary.NotAvailable

	var buf bytes.Buffer
	require.NoError(t, New(Config{}).FormatSummary(&buf, s))
	assert.Contains(t, buf.String(), "N/A%")
}

func TestTableFormatter_FormatRecords(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, New(Config{}).FormatRecords(&buf, testRecords()))

	out := buf.String()
	for _, want := range []string{"Directory", "run-a", "control", "mcp", "90.5s", "1,200", "$0.0168"} {
		assert.Contains(t, out, want)
	}
}

func TestTableFormatter_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, New(Config{Compact: true}).FormatRecords(&buf, nil))
	assert.Equal(t, "Sessions\nNo data\n", buf.String())
}

func TestTableFormatter_CompactHasNoSeparator(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, New(Config{Compact: true}).FormatSummary(&buf, testSummary()))
	assert.NotContains(t, buf.String(), "---")
}

func TestJSONFormatter_FormatSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, New(Config{Format: FormatJSON}).FormatSummary(&buf, testSummary()))

	var got map[string]string
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, map[string]string{
		"timeEfficiency":       "-50.0",
		"apiCallsReduction":    "-66.7",
		"interactionReduction": "0.0",
		"successRate":          "100",
	}, got)
}

func TestJSONFormatter_FormatSummaryWithCohorts(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, New(Config{Format: FormatJSON, ShowCohorts: true, Compact: true}).FormatSummary(&buf, testSummary()))

	var got summary.Summary
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, *testSummary(), got)
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(buf.String()), "\n")+1, "compact output is one line")
}

func TestJSONFormatter_FormatRecords(t *testing.T) {
	t.Parallel()

	var empty bytes.Buffer
	require.NoError(t, New(Config{Format: FormatJSON}).FormatRecords(&empty, nil))
	assert.JSONEq(t, "[]", empty.String())

	var buf bytes.Buffer
	require.NoError(t, New(Config{Format: FormatJSON}).FormatRecords(&buf, testRecords()))

	var got []metrics.Record
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, testRecords(), got)
}

func TestSimpleFormatter(t *testing.T) {
	t.Parallel()

	f := New(Config{Format: FormatSimple, ShowCohorts: true})

	var buf bytes.Buffer
	require.NoError(t, f.FormatSummary(&buf, testSummary()))
	assert.Equal(t,
		"Time Efficiency: -50.0%\n"+
			"API Calls Reduction: -66.7%\n"+
			"Interaction Reduction: 0.0%\n"+
			"Success Rate: 100%\n"+
			"control: 2 sessions | avg 120.0s | 12.0 api calls | 1.0 interactions\n"+
			"mcp: 3 sessions | avg 60.0s | 4.0 api calls | 1.0 interactions\n",
		buf.String())

	buf.Reset()
	require.NoError(t, f.FormatRecords(&buf, testRecords()[:1]))
	assert.Equal(t, "run-a/1 [control] 90.5s - 12 api calls, 1,500 tokens, $0.0168\n", buf.String())
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-1500, "-1,500"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatNumber(tt.in))
		})
	}
}

package summary

import (
	"fmt"
	"io"
	"math"
	"math/big"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"github.com/0xmhha/session-metrics/pkg/metrics"
)

// Aggregate compares the MCP cohort against the control cohort.
//
// Both cohorts are expected to be non-empty; see Compare for the
// checked entry point.
func Aggregate(control, mcp []Session) Report {
	c := Stats(control)
	m := Stats(mcp)

	return Report{
		TimeEfficiency:       PercentageChange(m.AvgDurationSeconds, c.AvgDurationSeconds),
		APICallsReduction:    PercentageChange(m.AvgAPICalls, c.AvgAPICalls),
		InteractionReduction: PercentageChange(m.AvgInteractions, c.AvgInteractions),
		SuccessRate:          toFixed(m.SuccessRate, 0),
	}
}

// Compare splits sessions into cohorts and aggregates them.
//
// Returns ErrEmptyCohort when either cohort is empty; no partial report
// is produced.
func Compare(sessions []Session) (*Summary, error) {
	control, mcp := Split(sessions)
	if len(control) == 0 || len(mcp) == 0 {
		return nil, fmt.Errorf("%w: control=%d mcp=%d", ErrEmptyCohort, len(control), len(mcp))
	}

	return &Summary{
		Report:  Aggregate(control, mcp),
		Control: Stats(control),
		MCP:     Stats(mcp),
	}, nil
}

// Split partitions sessions by mode. Sessions of any other mode are dropped.
func Split(sessions []Session) (control, mcp []Session) {
	for _, s := range sessions {
		switch s.Mode {
		case metrics.ModeControl:
			control = append(control, s)
		case metrics.ModeMCP:
			mcp = append(mcp, s)
		}
	}
	return control, mcp
}

// Stats computes the averages of one cohort.
func Stats(cohort []Session) CohortStats {
	durations := make([]*float64, 0, len(cohort))
	apiCalls := make([]*float64, 0, len(cohort))
	interactions := make([]*float64, 0, len(cohort))
	tokens := make([]*float64, 0, len(cohort))
	costs := make([]*float64, 0, len(cohort))
	successes := 0

	for _, s := range cohort {
		durations = append(durations, s.Duration)
		apiCalls = append(apiCalls, s.APICalls)
		interactions = append(interactions, s.Interactions)
		tokens = append(tokens, sumNullable(s.TokensIn, s.TokensOut))
		costs = append(costs, s.Cost)
		if s.Success {
			successes++
		}
	}

	return CohortStats{
		Sessions:           len(cohort),
		AvgDurationSeconds: average(durations) / 1000,
		AvgAPICalls:        average(apiCalls),
		AvgInteractions:    average(interactions),
		AvgTokens:          average(tokens),
		AvgCost:            average(costs),
		SuccessRate:        percentage(successes, len(cohort)),
	}
}

// PercentageChange returns (newValue - oldValue) / oldValue * 100 with
// one decimal place, or NotAvailable when oldValue is zero.
func PercentageChange(newValue, oldValue float64) string {
	if oldValue == 0 {
		return NotAvailable
	}
	return toFixed((newValue-oldValue)/oldValue*100, 1)
}

// toFixed formats v with the given number of decimals, rounding the
// exact binary value of v half away from zero: 0.15 is stored just
// below 0.15 and formats as "0.1". A negative value that rounds to zero
// keeps its sign ("-0.0").
func toFixed(v float64, places int32) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}

	exact := decimal.RequireFromString(new(big.Float).SetFloat64(v).Text('f', exactDigits))
	s := exact.Round(places).StringFixed(places)
	if v < 0 && !strings.HasPrefix(s, "-") {
		s = "-" + s
	}
	return s
}

// exactDigits is enough fractional digits to print any float64 exactly.
const exactDigits = 1074

// Decode reads a summary document: a JSON array of session records.
func Decode(r io.Reader) ([]Session, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}

	var sessions []Session
	if err := sonic.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return sessions, nil
}

// average is the mean of the non-nil values, or 0 when there are none.
func average(values []*float64) float64 {
	sum := 0.0
	n := 0
	for _, v := range values {
		if v == nil {
			continue
		}
		sum += *v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// percentage returns 100 * part / total, or 0 when total is zero.
func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// sumNullable adds a and b, treating a nil operand as zero. Both nil is nil.
func sumNullable(a, b *float64) *float64 {
	if a == nil && b == nil {
		return nil
	}
	total := 0.0
	if a != nil {
		total += *a
	}
	if b != nil {
		total += *b
	}
	return &total
}

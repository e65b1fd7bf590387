// Package summary compares a control cohort of sessions against an
// MCP-assisted cohort.
//
// Input is the collection of normalized session records (the
// summary.json document); output is a Report of percentage changes
// from control to MCP, formatted as decimal strings.
//
// Example usage:
//
//	sessions, err := summary.Decode(resp.Body)
//	if err != nil {
//	    return err
//	}
//	report, err := summary.Compare(sessions)
//	if errors.Is(err, summary.ErrEmptyCohort) {
//	    log.Error("no data available for either control or MCP sessions")
//	    return nil
//	}
//	fmt.Println(report.TimeEfficiency + "%")
package summary

import (
	"github.com/0xmhha/session-metrics/pkg/metrics"
	"github.com/0xmhha/session-metrics/pkg/segment"
)

// NotAvailable is reported for a change whose baseline average is zero.
const NotAvailable = "N/A"

// Session is one record of the summary document. Numeric fields are
// nullable; a null value is left out of cohort averages.
type Session struct {
	TaskID       segment.ID `json:"taskId"`
	DirectoryID  segment.ID `json:"directoryId"`
	Mode         string     `json:"mode"`
	Duration     *float64   `json:"duration"`
	APICalls     *float64   `json:"apiCalls"`
	Interactions *float64   `json:"interactions"`
	TokensIn     *float64   `json:"tokensIn"`
	TokensOut    *float64   `json:"tokensOut"`
	Cost         *float64   `json:"cost"`
	Success      bool       `json:"success"`
}

// Report is the control-versus-MCP comparison.
//
// Each change is (mcp - control) / control * 100 rounded to one
// decimal place, or NotAvailable. SuccessRate is the MCP cohort's rate
// rounded to a whole number.
type Report struct {
	TimeEfficiency       string `json:"timeEfficiency"`
	APICallsReduction    string `json:"apiCallsReduction"`
	InteractionReduction string `json:"interactionReduction"`
	SuccessRate          string `json:"successRate"`
}

// CohortStats contains the averages of one cohort.
type CohortStats struct {
	// Sessions is the cohort size.
	Sessions int `json:"sessions"`

	// AvgDurationSeconds is the mean duration in seconds.
	AvgDurationSeconds float64 `json:"avgDurationSeconds"`

	// AvgAPICalls is the mean API call count.
	AvgAPICalls float64 `json:"avgApiCalls"`

	// AvgInteractions is the mean interaction count.
	AvgInteractions float64 `json:"avgInteractions"`

	// AvgTokens is the mean of tokensIn + tokensOut.
	AvgTokens float64 `json:"avgTokens"`

	// AvgCost is the mean session cost.
	AvgCost float64 `json:"avgCost"`

	// SuccessRate is 100 * successful / Sessions.
	SuccessRate float64 `json:"successRate"`
}

// Summary bundles a Report with the cohort averages behind it.
type Summary struct {
	Report  Report      `json:"report"`
	Control CohortStats `json:"control"`
	MCP     CohortStats `json:"mcp"`
}

// FromRecords converts extractor output into sessions.
func FromRecords(records []metrics.Record) []Session {
	sessions := make([]Session, 0, len(records))
	for _, r := range records {
		duration := float64(r.Duration)
		apiCalls := float64(r.APICalls)
		interactions := float64(r.Interactions)
		tokensIn := float64(r.TokensIn)
		tokensOut := float64(r.TokensOut)
		cost := r.Cost

		sessions = append(sessions, Session{
			TaskID:       segment.ID(r.TaskID),
			DirectoryID:  segment.ID(r.DirectoryID),
			Mode:         r.Mode,
			Duration:     &duration,
			APICalls:     &apiCalls,
			Interactions: &interactions,
			TokensIn:     &tokensIn,
			TokensOut:    &tokensOut,
			Cost:         &cost,
			Success:      r.Success,
		})
	}
	return sessions
}

// Package metrics extracts a normalized usage record from one recorded
// session segment.
//
// Extraction is a pure function of the segment, the fallback test type
// and the pricing model. Its sub-computations (MCP detection, API call
// count, interaction count, token totals, model identification) share
// no state and run concurrently. A segment that cannot be processed
// yields a nil record and a logged error; callers skip it.
//
// Example usage:
//
//	ex := metrics.New(metrics.Config{}, logger.Default())
//	rec, err := ex.Extract(ctx, &seg, "control")
//	if err != nil {
//	    continue // already logged
//	}
//	fmt.Printf("%s: %d API calls, $%.4f\n", rec.Mode, rec.APICalls, rec.Cost)
package metrics

import (
	"context"

	"github.com/0xmhha/session-metrics/pkg/segment"
)

// Reporting modes.
const (
	ModeMCP     = "mcp"
	ModeControl = "control"
)

// Fixed labels written into every record.
const (
	// DefaultModel is reported for every session. The system-prompt scan
	// does not change it.
	DefaultModel = "claude-3.7-sonnet"

	MCPServer = "Twilio"
	MCPClient = "Cline"

	// InteractionsPerSession is the interaction count of every session.
	InteractionsPerSession = 1
)

// Record is the normalized metrics of one session.
//
// Invariant: TotalTokens == TokensIn + TokensOut.
// Invariant: Mode is ModeMCP whenever MCP tool usage was detected.
type Record struct {
	TaskID       string  `json:"taskId"`
	DirectoryID  string  `json:"directoryId"`
	Mode         string  `json:"mode"`
	Model        string  `json:"model"`
	MCPServer    string  `json:"mcpServer"`
	MCPClient    string  `json:"mcpClient"`
	StartTime    int64   `json:"startTime"`
	EndTime      int64   `json:"endTime"`
	Duration     int64   `json:"duration"`
	APICalls     int     `json:"apiCalls"`
	Interactions int     `json:"interactions"`
	TokensIn     int     `json:"tokensIn"`
	TokensOut    int     `json:"tokensOut"`
	TotalTokens  int     `json:"totalTokens"`
	Cost         float64 `json:"cost"`
	Success      bool    `json:"success"`
	Notes        string  `json:"notes"`
}

// Key returns the identity of the record within a collection.
func (r *Record) Key() string {
	return r.DirectoryID + "/" + r.TaskID
}

// Pricing converts token counts to cost when no cost was reported.
type Pricing struct {
	// InputPer1K is the price of 1,000 input tokens.
	InputPer1K float64

	// OutputPer1K is the price of 1,000 output tokens.
	OutputPer1K float64
}

// DefaultPricing is $0.008 per 1K input and $0.024 per 1K output tokens.
var DefaultPricing = Pricing{InputPer1K: 0.008, OutputPer1K: 0.024}

// Cost returns tokensIn*InputPer1K/1000 + tokensOut*OutputPer1K/1000.
func (p Pricing) Cost(tokensIn, tokensOut int) float64 {
	return (float64(tokensIn) * p.InputPer1K / 1000) + (float64(tokensOut) * p.OutputPer1K / 1000)
}

// Config contains extractor configuration.
type Config struct {
	// Pricing is used when a session reports no cost.
	// Default: DefaultPricing.
	Pricing Pricing

	// Workers bounds concurrent extractions in ExtractAll.
	// Default: 5.
	Workers int
}

// Extractor computes normalized metrics from segments.
type Extractor interface {
	// Extract computes the metrics of one segment.
	//
	// Parameters:
	//   - ctx: cancels the extraction
	//   - seg: segment to read (not modified)
	//   - fallbackTestType: mode used when no MCP usage is found and the
	//     segment declares no test type
	//
	// Returns a nil record and an error wrapping ErrExtraction when the
	// segment cannot be processed. The error has already been logged;
	// callers should skip the session rather than retry.
	//
	// Thread-safety: safe for concurrent use.
	Extract(ctx context.Context, seg *segment.Segment, fallbackTestType string) (*Record, error)

	// ExtractAll extracts many segments on a bounded worker pool.
	//
	// Returns the successful records in input order and the number of
	// skipped segments. The error is non-nil only when ctx is done.
	ExtractAll(ctx context.Context, segs []segment.Segment, fallbackTestType string) ([]Record, int, error)
}

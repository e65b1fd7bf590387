package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/session-metrics/pkg/logger"
	"github.com/0xmhha/session-metrics/pkg/segment"
)

func text(role, s string) segment.APICall {
	return segment.APICall{
		Role:    role,
		Content: []segment.ContentBlock{{Type: segment.ContentText, Text: s}},
	}
}

func say(kind, s string) segment.UIMessage {
	return segment.UIMessage{Type: segment.MessageSay, Say: kind, Text: s}
}

func newSegment() *segment.Segment {
	return &segment.Segment{
		TaskID:       "1",
		DirectoryID:  "dir-1",
		StartTime:    1000,
		EndTime:      5000,
		APICalls:     []segment.APICall{},
		UserMessages: []segment.UIMessage{},
	}
}

func TestExtract_MCPScenario(t *testing.T) {
	seg := newSegment()
	seg.APICalls = []segment.APICall{text(segment.RoleAssistant, "calling use_mcp_tool now")}
	seg.UserMessages = []segment.UIMessage{say(segment.SayAPIRequestStarted, "...")}

	rec, err := New(Config{}, logger.Noop()).Extract(context.Background(), seg, ModeControl)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, ModeMCP, rec.Mode)
	assert.Equal(t, 1, rec.APICalls)
	assert.Equal(t, 1, rec.Interactions)
	assert.Equal(t, int64(4000), rec.Duration)
	assert.Equal(t, int64(1000), rec.StartTime)
	assert.Equal(t, int64(5000), rec.EndTime)
	assert.Equal(t, "1", rec.TaskID)
	assert.Equal(t, "dir-1", rec.DirectoryID)
	assert.Equal(t, DefaultModel, rec.Model)
	assert.Equal(t, MCPServer, rec.MCPServer)
	assert.Equal(t, MCPClient, rec.MCPClient)
	assert.True(t, rec.Success)
	assert.Empty(t, rec.Notes)
}

func TestExtract_Mode(t *testing.T) {
	tests := []struct {
		name     string
		calls    []segment.APICall
		testType string
		fallback string
		want     string
	}{
		{"use_mcp_tool overrides test type", []segment.APICall{text("assistant", "<use_mcp_tool>")}, "control", "control", ModeMCP},
		{"use_mcp_server", []segment.APICall{text("assistant", "use_mcp_server")}, "control", "control", ModeMCP},
		{"access_mcp_resource", []segment.APICall{text("assistant", "x access_mcp_resource y")}, "", "control", ModeMCP},
		{"marker in user message ignored", []segment.APICall{text("user", "use_mcp_tool")}, "", "control", ModeControl},
		{"marker is case-sensitive", []segment.APICall{text("assistant", "USE_MCP_TOOL")}, "", "control", ModeControl},
		{"non-text block ignored", []segment.APICall{{Role: "assistant", Content: []segment.ContentBlock{{Type: "tool_use", Text: "use_mcp_tool"}}}}, "", "control", ModeControl},
		{"segment test type wins over fallback", nil, "baseline", "control", "baseline"},
		{"fallback when no test type", nil, "", "control", ModeControl},
	}

	ex := New(Config{}, logger.Noop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg := newSegment()
			if tt.calls != nil {
				seg.APICalls = tt.calls
			}
			seg.TestType = tt.testType

			rec, err := ex.Extract(context.Background(), seg, tt.fallback)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Mode)
		})
	}
}

func TestExtract_APICallCount(t *testing.T) {
	tests := []struct {
		name     string
		messages []segment.UIMessage
		want     int
	}{
		{"none", nil, 0},
		{"other say kinds", []segment.UIMessage{say("text", "hi"), say("completion_result", "done")}, 0},
		{"ask with api_req_started is not counted", []segment.UIMessage{{Type: "ask", Say: segment.SayAPIRequestStarted}}, 0},
		{"mcp server request not counted", []segment.UIMessage{say("mcp_server_request_started", ""), say(segment.SayAPIRequestStarted, "")}, 1},
		{"several", []segment.UIMessage{say(segment.SayAPIRequestStarted, ""), say(segment.SayAPIRequestStarted, "{}"), say(segment.SayAPIRequestStarted, "x")}, 3},
	}

	ex := New(Config{}, logger.Noop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg := newSegment()
			if tt.messages != nil {
				seg.UserMessages = tt.messages
			}

			rec, err := ex.Extract(context.Background(), seg, ModeControl)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.APICalls)
		})
	}
}

func TestExtract_InteractionsAlwaysOne(t *testing.T) {
	rec := newRecorderPair(t)

	for _, calls := range [][]segment.APICall{
		{},
		{text("user", "<task>do it</task>")},
		{text("user", "read agent-instructions/control_instructions.md")},
		{text("user", "unrelated"), text("assistant", "<task>")},
	} {
		seg := newSegment()
		seg.APICalls = calls

		got, err := rec.ex.Extract(context.Background(), seg, ModeControl)
		require.NoError(t, err)
		assert.Equal(t, InteractionsPerSession, got.Interactions)
	}

	var found, defaulted int
	for _, ev := range rec.log.Filter(logger.LevelInfo) {
		switch ev.Message {
		case "found initial task message":
			found++
		case "no initial task message found, defaulting to one interaction":
			defaulted++
		}
	}
	assert.Equal(t, 2, found)
	assert.Equal(t, 2, defaulted)
}

func TestExtract_ModelIsFixed(t *testing.T) {
	seg := newSegment()
	seg.APICalls = []segment.APICall{
		text("assistant", "You are a powerful agentic AI coding assistant, powered by Claude 3.5 Sonnet."),
	}

	rec, err := New(Config{}, logger.Noop()).Extract(context.Background(), seg, ModeControl)
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, rec.Model)
}

func TestExtract_Tokens(t *testing.T) {
	tests := []struct {
		name      string
		messages  []segment.UIMessage
		calls     []segment.APICall
		wantIn    int
		wantOut   int
		wantCost  float64
		derivedFn bool
	}{
		{
			name:     "structured message text",
			messages: []segment.UIMessage{say(segment.SayAPIRequestStarted, `{"request":"x","tokensIn":100,"tokensOut":50,"cost":0.25}`)},
			wantIn:   100, wantOut: 50, wantCost: 0.25,
		},
		{
			name:     "string numbers in structured text",
			messages: []segment.UIMessage{say(segment.SayAPIRequestStarted, `{"tokensIn":"7","tokensOut":"3","cost":"0.5"}`)},
			wantIn:   7, wantOut: 3, wantCost: 0.5,
		},
		{
			name:      "structured without tokensIn contributes nothing",
			messages:  []segment.UIMessage{say(segment.SayAPIRequestStarted, `{"tokensOut":50,"cost":1}`)},
			derivedFn: true,
		},
		{
			name:     "pattern fallback on free text",
			messages: []segment.UIMessage{say("text", `Usage: TokensIn: 40, tokensOut 60 COST: 0.125`)},
			wantIn:   40, wantOut: 60, wantCost: 0.125,
		},
		{
			name:      "pattern fallback with cost only is ignored",
			messages:  []segment.UIMessage{say("text", `cost: 3.5`)},
			derivedFn: true,
		},
		{
			name:      "ask messages are not read",
			messages:  []segment.UIMessage{{Type: "ask", Text: `{"tokensIn":100}`}},
			derivedFn: true,
		},
		{
			name: "usage from api calls",
			calls: []segment.APICall{
				{Role: "assistant", Usage: &segment.Usage{InputTokens: 1000, OutputTokens: 500, Cost: 0.02}},
				{Role: "assistant", Usage: &segment.Usage{InputTokens: 10}},
			},
			wantIn: 1010, wantOut: 500, wantCost: 0.02,
		},
		{
			name:      "derived cost when nothing reports cost",
			calls:     []segment.APICall{{Role: "assistant", Usage: &segment.Usage{InputTokens: 1000, OutputTokens: 2000}}},
			wantIn:    1000,
			wantOut:   2000,
			derivedFn: true,
		},
	}

	ex := New(Config{}, logger.Noop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg := newSegment()
			if tt.messages != nil {
				seg.UserMessages = tt.messages
			}
			if tt.calls != nil {
				seg.APICalls = tt.calls
			}

			rec, err := ex.Extract(context.Background(), seg, ModeControl)
			require.NoError(t, err)

			assert.Equal(t, tt.wantIn, rec.TokensIn)
			assert.Equal(t, tt.wantOut, rec.TokensOut)
			assert.Equal(t, rec.TokensIn+rec.TokensOut, rec.TotalTokens)

			want := tt.wantCost
			if tt.derivedFn {
				want = float64(rec.TokensIn)*0.008/1000 + float64(rec.TokensOut)*0.024/1000
			}
			assert.Equal(t, want, rec.Cost)
		})
	}
}

// Tokens reported both in a UI message and in the matching API call
// usage are summed twice. This pins the current behavior.
func TestExtract_DoubleCountsMessageAndUsage(t *testing.T) {
	seg := newSegment()
	seg.UserMessages = []segment.UIMessage{say(segment.SayAPIRequestStarted, `{"tokensIn":100,"tokensOut":20,"cost":0.01}`)}
	seg.APICalls = []segment.APICall{{Role: "assistant", Usage: &segment.Usage{InputTokens: 100, OutputTokens: 20, Cost: 0.01}}}

	rec, err := New(Config{}, logger.Noop()).Extract(context.Background(), seg, ModeControl)
	require.NoError(t, err)

	assert.Equal(t, 200, rec.TokensIn)
	assert.Equal(t, 40, rec.TokensOut)
	assert.Equal(t, 240, rec.TotalTokens)
	assert.InDelta(t, 0.02, rec.Cost, 1e-12)
}

func TestExtract_CustomPricing(t *testing.T) {
	seg := newSegment()
	seg.APICalls = []segment.APICall{{Role: "assistant", Usage: &segment.Usage{InputTokens: 2000, OutputTokens: 1000}}}

	ex := New(Config{Pricing: Pricing{InputPer1K: 0.003, OutputPer1K: 0.015}}, logger.Noop())
	rec, err := ex.Extract(context.Background(), seg, ModeControl)
	require.NoError(t, err)
	assert.Equal(t, float64(2000)*0.003/1000+float64(1000)*0.015/1000, rec.Cost)
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name    string
		seg     *segment.Segment
		ctx     func() context.Context
		wantErr error
	}{
		{
			name:    "nil segment",
			seg:     nil,
			wantErr: ErrNilSegment,
		},
		{
			name:    "missing api calls",
			seg:     &segment.Segment{TaskID: "9", UserMessages: []segment.UIMessage{}},
			wantErr: segment.ErrMissingAPICalls,
		},
		{
			name:    "missing user messages",
			seg:     &segment.Segment{TaskID: "9", APICalls: []segment.APICall{}},
			wantErr: segment.ErrMissingUserMessages,
		},
		{
			name: "cancelled context",
			seg:  newSegment(),
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := logger.NewRecorder()
			ctx := context.Background()
			if tt.ctx != nil {
				ctx = tt.ctx()
			}

			rec, err := New(Config{}, log).Extract(ctx, tt.seg, ModeControl)
			assert.Nil(t, rec)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrExtraction)
			assert.ErrorIs(t, err, tt.wantErr)

			errs := log.Filter(logger.LevelError)
			require.Len(t, errs, 1)
			assert.Equal(t, "error calculating metrics", errs[0].Message)
		})
	}
}

func TestStageRecoversPanic(t *testing.T) {
	fn := stage(context.Background(), "tokens", func() { panic("boom") })

	err := fn()
	require.Error(t, err)

	var se *stageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "tokens", se.stage)
	assert.Contains(t, err.Error(), "boom")
}

func TestExtractAll(t *testing.T) {
	segs := make([]segment.Segment, 0, 20)
	for i := 0; i < 20; i++ {
		seg := newSegment()
		seg.TaskID = segment.ID(fmt.Sprint(i))
		if i%5 == 0 {
			seg.UserMessages = nil
		}
		segs = append(segs, *seg)
	}

	records, skipped, err := New(Config{Workers: 3}, logger.Noop()).ExtractAll(context.Background(), segs, ModeControl)
	require.NoError(t, err)
	assert.Equal(t, 4, skipped)
	require.Len(t, records, 16)
	assert.Equal(t, "1", records[0].TaskID)
	assert.Equal(t, "19", records[15].TaskID)
}

func TestExtractAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := New(Config{}, logger.Noop()).ExtractAll(ctx, []segment.Segment{*newSegment()}, ModeControl)
	assert.ErrorIs(t, err, context.Canceled)
}

type recorderPair struct {
	ex  Extractor
	log *logger.Recorder
}

func newRecorderPair(t *testing.T) recorderPair {
	t.Helper()
	log := logger.NewRecorder()
	return recorderPair{ex: New(Config{}, log), log: log}
}

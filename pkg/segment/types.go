// Package segment defines the recorded session ("segment") input read
// by the metrics extractor, and loads segments from JSON files.
//
// A segment bundles the raw API conversation of one Cline task with the
// UI event messages shown while it ran. Segments are produced by an
// external segmentation step and are never modified here.
//
// Example usage:
//
//	segs, err := segment.LoadFile("/data/segments/task-17.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, s := range segs {
//	    fmt.Println(s.TaskID, len(s.APICalls))
//	}
package segment

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/bytedance/sonic"
)

// Roles and UI message kinds the extractor looks at.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	ContentText = "text"

	MessageSay = "say"
	MessageAsk = "ask"

	SayAPIRequestStarted = "api_req_started"
)

// Segment is one recorded task execution.
//
// Invariant: APICalls and UserMessages are non-nil for a well-formed
// segment (they may be empty). StartTime and EndTime share a unit
// (milliseconds); EndTime >= StartTime is expected but not enforced.
type Segment struct {
	TaskID       ID          `json:"taskNumber"`
	DirectoryID  ID          `json:"directoryId"`
	StartTime    int64       `json:"startTime"`
	EndTime      int64       `json:"endTime"`
	TestType     string      `json:"testType,omitempty"`
	APICalls     []APICall   `json:"apiCalls"`
	UserMessages []UIMessage `json:"userMessages"`
}

// APICall is one entry of the API conversation history.
type APICall struct {
	Role    string         `json:"role"`
	Content Blocks `json:"content,omitempty"`
	Usage   *Usage         `json:"usage,omitempty"`
}

// ContentBlock is a typed piece of an API message.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Blocks is the content of an API message. Content that is not an
// array (a plain string, for example) decodes as no blocks, and array
// elements that are not content blocks are dropped.
type Blocks []ContentBlock

// UnmarshalJSON implements json.Unmarshaler.
func (b *Blocks) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		*b = nil
		return nil
	}

	var elems []json.RawMessage
	if err := sonic.Unmarshal(data, &elems); err != nil {
		return err
	}

	blocks := make(Blocks, 0, len(elems))
	for _, elem := range elems {
		var block ContentBlock
		if err := sonic.Unmarshal(elem, &block); err != nil {
			continue
		}
		blocks = append(blocks, block)
	}
	*b = blocks
	return nil
}

// Usage is provider-reported consumption for one API call.
// Absent fields decode as zero.
type Usage struct {
	InputTokens  int     `json:"input_tokens,omitempty"`
	OutputTokens int     `json:"output_tokens,omitempty"`
	Cost         float64 `json:"cost,omitempty"`
}

// UIMessage is one event from the Cline UI message log.
//
// Text is free-form: for api_req_started it usually holds a JSON
// document with tokensIn, tokensOut and cost.
type UIMessage struct {
	Type      string `json:"type"`
	Say       string `json:"say,omitempty"`
	Ask       string `json:"ask,omitempty"`
	Text      string `json:"text,omitempty"`
	Timestamp int64  `json:"ts,omitempty"`
}

// Duration returns EndTime - StartTime.
func (s *Segment) Duration() int64 {
	return s.EndTime - s.StartTime
}

// Validate checks that the segment has the fields the extractor reads.
//
// Thread-safety: This method is read-only and thread-safe.
func (s *Segment) Validate() error {
	if s.APICalls == nil {
		return ErrMissingAPICalls
	}
	if s.UserMessages == nil {
		return ErrMissingUserMessages
	}
	return nil
}

// ID is an opaque identifier that may be written as a JSON string or
// number. Numbers keep their literal text.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := sonic.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	default:
		if _, err := strconv.ParseFloat(string(data), 64); err != nil {
			return ErrInvalidID
		}
		*id = ID(data)
		return nil
	}
}

// String returns the identifier text.
func (id ID) String() string {
	return string(id)
}

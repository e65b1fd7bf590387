package metrics

import (
	"regexp"
	"strings"

	"github.com/0xmhha/session-metrics/pkg/logger"
	"github.com/0xmhha/session-metrics/pkg/segment"
)

// mcpMarkers are the tool-invocation tags that classify a session as MCP.
var mcpMarkers = []string{
	"use_mcp_tool",
	"use_mcp_server",
	"access_mcp_resource",
}

// taskMarkers identify the initial task prompt sent by the user.
var taskMarkers = []string{
	"<task>",
	"Complete Task",
	"agent-instructions/mcp_instructions.md",
	"agent-instructions/control_instructions.md",
}

var systemPromptSignature = regexp.MustCompile(`(?i)You are a powerful agentic AI coding assistant, powered by Claude 3\.5 Sonnet`)

// textBlocks calls fn for every non-empty text block of calls with the
// given role, stopping when fn returns true. It reports whether fn did.
func textBlocks(calls []segment.APICall, role string, fn func(text string) bool) bool {
	for _, call := range calls {
		if call.Role != role {
			continue
		}
		for _, block := range call.Content {
			if block.Type != segment.ContentText || block.Text == "" {
				continue
			}
			if fn(block.Text) {
				return true
			}
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// detectMCP reports whether any assistant message invoked an MCP tool.
func detectMCP(seg *segment.Segment) bool {
	return textBlocks(seg.APICalls, segment.RoleAssistant, func(text string) bool {
		return containsAny(text, mcpMarkers)
	})
}

// countAPICalls counts api_req_started events. MCP tool requests are
// not API calls and are not counted.
func countAPICalls(seg *segment.Segment, log logger.Logger) int {
	count := 0
	for _, msg := range seg.UserMessages {
		if msg.Type == segment.MessageSay && msg.Say == segment.SayAPIRequestStarted {
			count++
			log.Debug("found API request", "text", msg.Text)
		}
	}

	log.Info("counted API calls", "api_calls", count)
	return count
}

// countInteractions always returns InteractionsPerSession. The scan for
// the initial task prompt only decides what is logged.
func countInteractions(seg *segment.Segment, log logger.Logger) int {
	found := textBlocks(seg.APICalls, segment.RoleUser, func(text string) bool {
		return containsAny(text, taskMarkers)
	})

	if found {
		log.Info("found initial task message")
	} else {
		log.Info("no initial task message found, defaulting to one interaction")
	}
	return InteractionsPerSession
}

// identifyModel always returns DefaultModel. A matching system prompt
// is logged but does not change the label.
func identifyModel(seg *segment.Segment, log logger.Logger) string {
	matched := textBlocks(seg.APICalls, segment.RoleAssistant, systemPromptSignature.MatchString)
	log.Debug("model identification", "system_prompt_matched", matched, "model", DefaultModel)
	return DefaultModel
}

package metrics

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cast"

	"github.com/0xmhha/session-metrics/pkg/logger"
	"github.com/0xmhha/session-metrics/pkg/segment"
)

var (
	tokensInPattern  = regexp.MustCompile(`(?i)tokensIn["\s:]+(\d+)`)
	tokensOutPattern = regexp.MustCompile(`(?i)tokensOut["\s:]+(\d+)`)
	costPattern      = regexp.MustCompile(`(?i)cost["\s:]+([0-9.]+)`)
	leadingFloat     = regexp.MustCompile(`^[+-]?[0-9]*\.?[0-9]+`)
	leadingInt       = regexp.MustCompile(`^[+-]?[0-9]+`)
)

// tokenFields is the usage reported by one UI message.
type tokenFields struct {
	TokensIn  int
	TokensOut int
	Cost      float64

	// Found is set when the message carried token counts at all.
	Found bool
}

// tokenTotals is the accumulated usage of a segment.
type tokenTotals struct {
	TokensIn  int
	TokensOut int
	Cost      float64

	MessagesWithTokens int
	CallsWithUsage     int
}

// tryStructuredParse decodes text as JSON. ok is false only when text is
// not a JSON document (or is JSON null); a document without a tokensIn
// key parses fine but reports Found == false.
func tryStructuredParse(text string) (fields tokenFields, ok bool) {
	var doc interface{}
	if err := sonic.UnmarshalString(text, &doc); err != nil || doc == nil {
		return tokenFields{}, false
	}

	obj, isObject := doc.(map[string]interface{})
	if !isObject {
		return tokenFields{}, true
	}

	in, present := obj["tokensIn"]
	if !present {
		return tokenFields{}, true
	}

	return tokenFields{
		TokensIn:  toInt(in),
		TokensOut: toInt(obj["tokensOut"]),
		Cost:      toFloat(obj["cost"]),
		Found:     true,
	}, true
}

// tryPatternParse pulls tokensIn, tokensOut and cost out of free text.
// It never fails; missing values are zero. Found requires a token count,
// a cost alone is ignored.
func tryPatternParse(text string) tokenFields {
	var fields tokenFields

	if m := tokensInPattern.FindStringSubmatch(text); m != nil {
		fields.TokensIn, _ = strconv.Atoi(m[1])
		fields.Found = true
	}
	if m := tokensOutPattern.FindStringSubmatch(text); m != nil {
		fields.TokensOut, _ = strconv.Atoi(m[1])
		fields.Found = true
	}
	if !fields.Found {
		return tokenFields{}
	}

	if m := costPattern.FindStringSubmatch(text); m != nil {
		fields.Cost = parseLeadingFloat(m[1])
	}
	return fields
}

// parseMessageTokens composes the two parsers.
func parseMessageTokens(text string) tokenFields {
	if fields, ok := tryStructuredParse(text); ok {
		return fields
	}
	return tryPatternParse(text)
}

// toInt coerces a decoded JSON value to a count. Strings are read as a
// base-10 integer prefix ("012" is 12, "1e3" is 1); anything unreadable
// is 0.
func toInt(v interface{}) int {
	switch t := v.(type) {
	case string:
		n, _ := strconv.Atoi(leadingInt.FindString(strings.TrimSpace(t)))
		return n
	case bool:
		return 0
	default:
		return cast.ToInt(v)
	}
}

// toFloat coerces a decoded JSON value to a cost. Strings are read by
// parseLeadingFloat.
func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case string:
		return parseLeadingFloat(t)
	case bool:
		return 0
	default:
		return cast.ToFloat64(v)
	}
}

// parseLeadingFloat parses the longest numeric prefix of s ("1.5.2" is 1.5).
func parseLeadingFloat(s string) float64 {
	prefix := leadingFloat.FindString(strings.TrimSpace(s))
	if prefix == "" {
		return 0
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return 0
	}
	return f
}

// sumTokens accumulates usage from UI messages, then from API call
// usage blocks. Both sources are added; a session that reports the
// same request in both places is counted twice.
func sumTokens(seg *segment.Segment, pricing Pricing, log logger.Logger) tokenTotals {
	var totals tokenTotals

	for _, msg := range seg.UserMessages {
		if msg.Type != segment.MessageSay || msg.Text == "" {
			continue
		}

		fields := parseMessageTokens(msg.Text)
		if !fields.Found {
			continue
		}

		totals.TokensIn += fields.TokensIn
		totals.TokensOut += fields.TokensOut
		totals.Cost += fields.Cost
		totals.MessagesWithTokens++
		log.Debug("message tokens",
			"message", totals.MessagesWithTokens,
			"tokens_in", fields.TokensIn,
			"tokens_out", fields.TokensOut)
	}

	for _, call := range seg.APICalls {
		if call.Usage == nil {
			continue
		}

		totals.TokensIn += call.Usage.InputTokens
		totals.TokensOut += call.Usage.OutputTokens
		totals.Cost += call.Usage.Cost
		totals.CallsWithUsage++
		log.Debug("API call tokens",
			"call", totals.CallsWithUsage,
			"tokens_in", call.Usage.InputTokens,
			"tokens_out", call.Usage.OutputTokens)
	}

	if totals.Cost == 0 {
		totals.Cost = pricing.Cost(totals.TokensIn, totals.TokensOut)
	}

	log.Info("token metrics",
		"messages_with_tokens", totals.MessagesWithTokens,
		"api_calls_with_tokens", totals.CallsWithUsage,
		"tokens_in", totals.TokensIn,
		"tokens_out", totals.TokensOut,
		"cost", totals.Cost)

	return totals
}

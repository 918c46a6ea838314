// Package parser extracts structured tool-call requests from raw model
// output. Model output is untrusted text; anything that fails to parse is
// treated as a final answer, never as an error.
package parser

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ToolCall is one tool invocation requested by the model. Arguments are
// passed through with whatever shape the model produced; validating them
// against the advertised tool parameters is the caller's responsibility.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// jsonBlockRegex matches the first fenced code block, optionally tagged
// json. Only the first block is considered.
var jsonBlockRegex = regexp.MustCompile("```(?:json)?\\s*\\n([\\s\\S]*?)\\n```")

// ParseToolCalls decides whether text encodes a request to invoke tools.
// It tries, in order: the entire trimmed text as a JSON object with a
// tool_calls array, then the contents of the first fenced code block.
// A nil result means the text is a final answer.
func ParseToolCalls(text string) []ToolCall {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if calls, ok := parseToolCallObject(trimmed); ok {
		return calls
	}

	if matches := jsonBlockRegex.FindStringSubmatch(trimmed); len(matches) > 1 {
		if calls, ok := parseToolCallObject(strings.TrimSpace(matches[1])); ok {
			return calls
		}
	}

	return nil
}

// parseToolCallObject attempts to parse text as a JSON object carrying a
// tool_calls array. Malformed JSON, a missing tool_calls field, or a
// tool_calls value that is not an array all report false.
func parseToolCallObject(text string) ([]ToolCall, bool) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, false
	}

	raw, ok := payload["tool_calls"]
	if !ok {
		return nil, false
	}

	var entries []struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}

	calls := make([]ToolCall, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		calls = append(calls, ToolCall{Name: e.Name, Arguments: e.Arguments})
	}
	return calls, true
}

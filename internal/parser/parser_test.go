package parser

import (
	"testing"
)

func TestParseDirectJSON(t *testing.T) {
	calls := ParseToolCalls(`{"tool_calls":[{"name":"x","arguments":{"a":1}}]}`)
	if len(calls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(calls))
	}
	if calls[0].Name != "x" {
		t.Errorf("expected name x, got %s", calls[0].Name)
	}
	if v, ok := calls[0].Arguments["a"].(float64); !ok || v != 1 {
		t.Errorf("expected arguments {a:1}, got %v", calls[0].Arguments)
	}
}

func TestParseFencedBlock(t *testing.T) {
	text := "I need to check the weather first.\n\n```json\n{\"tool_calls\":[{\"name\":\"get_weather\",\"arguments\":{\"city\":\"London\"}}]}\n```"
	calls := ParseToolCalls(text)
	if len(calls) != 1 {
		t.Fatalf("expected 1 tool call from fenced block, got %d", len(calls))
	}
	if calls[0].Name != "get_weather" {
		t.Errorf("expected get_weather, got %s", calls[0].Name)
	}
	if city, _ := calls[0].Arguments["city"].(string); city != "London" {
		t.Errorf("expected city London, got %v", calls[0].Arguments["city"])
	}
}

func TestParseUntaggedFence(t *testing.T) {
	text := "```\n{\"tool_calls\":[{\"name\":\"lookup\"}]}\n```"
	calls := ParseToolCalls(text)
	if len(calls) != 1 || calls[0].Name != "lookup" {
		t.Fatalf("expected 1 call from untagged fence, got %v", calls)
	}
}

func TestOnlyFirstFenceConsidered(t *testing.T) {
	text := "```json\n{\"note\":\"not a tool call\"}\n```\n\n```json\n{\"tool_calls\":[{\"name\":\"x\"}]}\n```"
	if calls := ParseToolCalls(text); calls != nil {
		t.Fatalf("expected final answer when first fence has no tool_calls, got %v", calls)
	}
}

func TestFinalAnswers(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"plain text", "The weather in London is sunny."},
		{"json without tool_calls", `{"other_key":"v"}`},
		{"tool_calls not an array", `{"tool_calls":"get_weather"}`},
		{"malformed json", `{"tool_calls":[{"name":"x"`},
		{"empty", "   "},
		{"json embedded in prose", `Sure: {"tool_calls":[{"name":"x"}]} done`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if calls := ParseToolCalls(tc.text); calls != nil {
				t.Errorf("expected no tool calls, got %v", calls)
			}
		})
	}
}

func TestMultipleToolCalls(t *testing.T) {
	calls := ParseToolCalls(`{"tool_calls":[{"name":"a","arguments":{}},{"name":"b"}]}`)
	if len(calls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(calls))
	}
	if calls[0].Name != "a" || calls[1].Name != "b" {
		t.Errorf("order not preserved: %v", calls)
	}
}

func TestNamelessEntriesSkipped(t *testing.T) {
	calls := ParseToolCalls(`{"tool_calls":[{"arguments":{"a":1}},{"name":"ok"}]}`)
	if len(calls) != 1 || calls[0].Name != "ok" {
		t.Fatalf("expected only the named entry, got %v", calls)
	}
}

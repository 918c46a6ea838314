package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ChamsBouzaiene/lmbridge/internal/store"
)

// BuildToolSystemPrompt synthesizes the system prompt for a tool-equipped
// session. It enumerates every tool and pins the exact reply shape the
// response parser understands. Empty tools yield an empty prompt.
func BuildToolSystemPrompt(tools []store.ToolSchema) string {
	if len(tools) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("You have access to the following tools:\n\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s", t.Name)
		if t.Description != "" {
			fmt.Fprintf(&b, ": %s", t.Description)
		}
		b.WriteString("\n")
		if len(t.Parameters) > 0 {
			if params, err := json.Marshal(t.Parameters); err == nil {
				fmt.Fprintf(&b, "  parameters: %s\n", params)
			}
		}
	}
	b.WriteString("\nTo invoke tools, respond with exactly this JSON and nothing else:\n")
	b.WriteString(`{"tool_calls":[{"name":"tool_name","arguments":{...}}]}`)
	b.WriteString("\nWhen you have the final answer, respond with plain text instead.")
	return b.String()
}

// FormatToolResults folds tool execution results into one user message,
// one line per result. Results are relayed as-is; nothing checks them
// against the calls the model previously requested.
func FormatToolResults(results []ToolResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("[%s]: %s", r.Name, r.Result))
	}
	return strings.Join(lines, "\n")
}

// Package prompt renders a chat history into Harmony wire text.
package prompt

import (
	"encoding/json"
	"strings"

	"github.com/please-run/please/internal/message"
)

// Render serializes history into Harmony wire text. If
// appendAssistantStart is true, a bare "<|start|>assistant" is
// appended at the end to cue the next assistant turn.
func Render(history []message.Message, appendAssistantStart bool) string {
	var out strings.Builder

	for _, m := range history {
		switch m.Role {
		case message.RoleSystem:
			pushSegment(&out, "system", m.Content)
		case message.RoleDeveloper:
			pushSegment(&out, "developer", m.Content)
		case message.RoleUser:
			pushSegment(&out, "user", m.Content)
		case message.RoleAssistant:
			pushAssistant(&out, "final", m.Content)
		case message.RoleReasoning:
			pushAssistant(&out, "analysis", m.Content)
		case message.RoleTool:
			renderTool(&out, m.Content)
		}
	}

	if appendAssistantStart {
		out.WriteString("<|start|>assistant")
	}

	return out.String()
}

func pushSegment(out *strings.Builder, role, body string) {
	out.WriteString("<|start|>")
	out.WriteString(role)
	out.WriteString("<|message|>")
	out.WriteString(body)
	out.WriteString("<|end|>")
}

func pushAssistant(out *strings.Builder, channel, body string) {
	out.WriteString("<|start|>assistant<|channel|>")
	out.WriteString(channel)
	out.WriteString("<|message|>")
	out.WriteString(body)
	out.WriteString("<|end|>")
}

func pushToolCall(out *strings.Builder, name, argsJSON string) {
	out.WriteString("<|start|>assistant<|channel|>commentary to=functions.")
	out.WriteString(name)
	out.WriteString(" <|constrain|>json<|message|>")
	out.WriteString(argsJSON)
	out.WriteString("<|call|>")
}

func pushToolResult(out *strings.Builder, name, payload string) {
	out.WriteString("<|start|>functions.")
	out.WriteString(name)
	out.WriteString(" to=assistant<|channel|>commentary<|message|>")
	out.WriteString(payload)
	out.WriteString("<|end|>")
}

// renderTool parses the Tool message's JSON blob and emits a call
// segment if `arguments` is present, a result segment if `result` is
// present, or falls back to treating the whole blob as the result
// payload if neither key is present. Malformed JSON falls back to a
// plain assistant commentary segment containing the raw string.
func renderTool(out *strings.Builder, raw string) {
	var val map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &val); err != nil {
		pushAssistant(out, "commentary", raw)
		return
	}

	var name string
	if n, ok := val["tool"]; ok {
		_ = json.Unmarshal(n, &name)
	}

	args, hasArgs := val["arguments"]
	result, hasResult := val["result"]

	if hasArgs {
		pushToolCall(out, name, string(args))
	}
	if hasResult {
		pushToolResult(out, name, resultPayload(result))
	}
	if !hasArgs && !hasResult {
		pushToolResult(out, name, raw)
	}
}

// resultPayload renders a result value as a string: if it's already a
// JSON string, its unquoted contents are used verbatim; otherwise the
// raw JSON is used as-is.
func resultPayload(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

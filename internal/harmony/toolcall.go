package harmony

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ToolCall is a fully parsed, name-resolved tool invocation.
type ToolCall struct {
	Name      string
	Arguments json.RawMessage
}

// toolCallAccumulator collects the JSON text of a single tool call
// across possibly many ContentEmitted events, since a tool call's
// arguments JSON may arrive in several chunks.
type toolCallAccumulator struct {
	acc      strings.Builder
	toolName *string
}

func (a *toolCallAccumulator) setToolName(name string) {
	a.toolName = &name
}

func (a *toolCallAccumulator) add(content string) {
	a.acc.WriteString(content)
}

// drain returns the accumulated recipient name (if any) and raw JSON,
// and resets the accumulator for the next tool call.
func (a *toolCallAccumulator) drain() (*string, string) {
	s := a.acc.String()
	a.acc.Reset()
	name := a.toolName
	a.toolName = nil
	return name, s
}

// parseToolCall resolves a raw recipient + accumulated JSON into a
// ToolCall, normalizing the recipient name (stripping any
// "functions." prefix and mapping it back through names) and
// validating the JSON.
func parseToolCall(rawRecipient, rawJSON string, names *NameMap) (ToolCall, error) {
	name := strings.TrimPrefix(rawRecipient, "functions.")
	name = names.OriginalFromConverted(name)

	var args json.RawMessage
	if err := json.Unmarshal([]byte(rawJSON), &args); err != nil {
		return ToolCall{}, fmt.Errorf("error parsing tool call: raw=%q: %w", rawJSON, err)
	}
	return ToolCall{Name: name, Arguments: args}, nil
}

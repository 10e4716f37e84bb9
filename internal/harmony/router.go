package harmony

import "log/slog"

type routerState int

const (
	routerAnswering routerState = iota
	routerThinking
	routerToolCalling
)

// Router consumes Parser events and sorts their content into the
// three destinations a turn cares about: the visible answer, the
// hidden reasoning, and an in-progress tool call's JSON.
//
// Channel routing (order-insensitive with the parser's header
// parsing):
//   - a header with a non-empty recipient always means ToolCalling,
//     regardless of channel;
//   - channel "analysis" with no recipient means Thinking;
//   - channel "commentary" or "final" with no recipient means
//     Answering;
//   - any other channel leaves the current state unchanged.
type Router struct {
	state    routerState
	Names    *NameMap
	toolAcc  *toolCallAccumulator
	answer   []byte
	thinking []byte
}

// NewRouter returns a router ready to consume events from a fresh
// Parser. Tools passed in are registered through the name map so that
// recipients the model emits can be mapped back to user names.
func NewRouter(toolNames []string) *Router {
	names := NewNameMap()
	for _, n := range toolNames {
		names.ConvertAndAdd(n)
	}
	return &Router{
		Names:   names,
		toolAcc: &toolCallAccumulator{},
	}
}

// HarmonyNameFor returns the Harmony-safe recipient name to emit for a
// given user-facing tool name; it registers the name on first use.
func (r *Router) HarmonyNameFor(userName string) string {
	if existing, ok := r.Names.userToHarmony[userName]; ok {
		return existing
	}
	return r.Names.ConvertAndAdd(userName)
}

// Add feeds one chunk of model output through the parser and returns
// the answer text, reasoning text, and tool-call JSON text extracted
// from it so far. It mirrors the teacher's higher-level message
// handler: parsing is fully decoupled from routing so that a caller
// driving UI state can replay the same events independently.
func (r *Router) Add(parser *Parser, content string) (answerDelta, reasoningDelta, toolJSONDelta string) {
	var answerSb, thinkingSb, toolSb []byte

	for _, ev := range parser.Feed(content) {
		switch e := ev.(type) {
		case EventHeaderComplete:
			switch {
			case e.Header.Recipient != "":
				r.state = routerToolCalling
				r.toolAcc.setToolName(e.Header.Recipient)
			case e.Header.Channel == "analysis":
				r.state = routerThinking
			case e.Header.Channel == "commentary" || e.Header.Channel == "final":
				r.state = routerAnswering
			}
		case EventContentEmitted:
			switch r.state {
			case routerAnswering:
				answerSb = append(answerSb, e.Content...)
			case routerThinking:
				thinkingSb = append(thinkingSb, e.Content...)
			case routerToolCalling:
				toolSb = append(toolSb, e.Content...)
			}
		case EventMessageEnd:
			r.state = routerAnswering
		}
	}

	if len(toolSb) > 0 {
		r.toolAcc.add(string(toolSb))
	}

	return string(answerSb), string(thinkingSb), string(toolSb)
}

// Finalize parses any accumulated tool-call JSON into a ToolCall. It
// must only be called once the terminal flush of a subturn has
// happened (parser events exhausted). If no tool call was
// accumulated, it returns (nil, nil). A JSON parse failure is
// returned as an error string meant to be surfaced back to the model
// as a tool-result so it can self-correct, per spec.
func (r *Router) Finalize() (*ToolCall, error) {
	name, raw := r.toolAcc.drain()
	if name == nil {
		return nil, nil
	}
	call, err := parseToolCall(*name, raw, r.Names)
	if err != nil {
		slog.Debug("harmony: tool call parse error", "error", err)
		return nil, err
	}
	return &call, nil
}

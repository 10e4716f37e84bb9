// Package turn drives a single conversational turn against a Hub
// connection: it sends the chat history, streams the response through
// the Harmony parser and router, dispatches any resulting tool calls
// through the approval gate and tool registry, and repeats as
// additional subturns until the model produces a final answer with no
// pending tool call.
package turn

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/please-run/please/internal/frame"
	"github.com/please-run/please/internal/harmony"
	"github.com/please-run/please/internal/message"
	"github.com/please-run/please/internal/tools"
)

// Dialer obtains a fresh control connection to the Hub, used to
// replace a broken stream during reconnect.
type Dialer func() (net.Conn, error)

// Engine runs turns against a Hub connection, replacing it via dial
// on disconnect.
type Engine struct {
	Registry       *tools.Registry
	Approval       *ApprovalManager
	NonInteractive bool
	Dial           Dialer
}

// NewEngine returns an Engine wired to the default tool registry and a
// fresh approval manager.
func NewEngine(dial Dialer, nonInteractive bool) *Engine {
	return &Engine{
		Registry:       tools.Default(),
		Approval:       NewApprovalManager(),
		NonInteractive: nonInteractive,
		Dial:           dial,
	}
}

// maxReconnectAttempts bounds the exponential-backoff reconnect loop.
const maxReconnectAttempts = 6

// RunTurn sends history to the Hub over *conn (reconnecting through
// e.Dial on disconnect, up to maxReconnectAttempts times with
// exponential backoff) and runs subturns until a final answer is
// produced. It returns the final answer text; history is extended in
// place with every Reasoning/Assistant/Tool message appended along the
// way, mirroring what was sent to the Hub.
func (e *Engine) RunTurn(conn *net.Conn, display Display, history *[]message.Message) (string, error) {
	attempt := 0
	for {
		answer, err := e.attemptTurnOnStream(*conn, display, history)
		if err == nil {
			return answer, nil
		}
		if !frame.IsDisconnect(err) {
			return "", err
		}
		if attempt >= maxReconnectAttempts {
			return "", fmt.Errorf("turn: giving up after %d reconnect attempts: %w", attempt, err)
		}

		backoff := time.Duration(1<<min(attempt, 6)) * time.Millisecond
		slog.Warn("turn: connection lost, reconnecting", "attempt", attempt+1, "backoff", backoff)
		time.Sleep(backoff)

		newConn, dialErr := e.Dial()
		if dialErr != nil {
			return "", fmt.Errorf("turn: reconnect failed: %w", dialErr)
		}
		(*conn).Close()
		*conn = newConn
		attempt++
	}
}

// attemptTurnOnStream runs the outer subturn loop of a single turn
// attempt against one live connection: send Request, stream and route
// the response, execute any tool calls, and either return the final
// answer or loop with the extended history.
func (e *Engine) attemptTurnOnStream(conn net.Conn, display Display, history *[]message.Message) (string, error) {
	toolNames := e.Registry.Names()

	for {
		display.StartSpinning()

		if err := frame.WriteFrame(conn, frame.Request(*history)); err != nil {
			return "", err
		}

		sub, err := e.streamSubturn(conn, display, toolNames)
		if err != nil {
			return "", err
		}

		if sub.reasoning != "" {
			*history = append(*history, message.Reasoning(sub.reasoning))
		}
		if sub.answer != "" {
			*history = append(*history, message.Assistant(sub.answer))
		}

		if sub.call == nil {
			if sub.parseErr != nil {
				payload, _ := json.Marshal(map[string]any{
					"tool":   "tool_call_parse_error",
					"result": map[string]any{"error": sub.parseErr.Error()},
				})
				*history = append(*history, message.Tool(string(payload)))
				continue
			}
			return sub.final, nil
		}

		e.runToolCall(display, sub.call, history)
		// Loop continues: the outer loop resends the extended history.
	}
}

// subturnResult collects everything one Stop-terminated subturn
// produced.
type subturnResult struct {
	final     string // visible answer text, for the caller awaiting a reply
	answer    string // assistant-visible content to persist in history
	reasoning string // hidden reasoning to persist in history
	call      *harmony.ToolCall
	parseErr  error
}

// streamSubturn reads frames for one subturn until Stop, running the
// delta through two independent Harmony passes over the same bytes: a
// display-only parser that drives phase transitions (thinking/
// answering) on display, and the router (with its own parser) that
// accumulates the answer, reasoning, and any tool call.
func (e *Engine) streamSubturn(conn net.Conn, display Display, toolNames []string) (subturnResult, error) {
	reader := frame.NewReader(conn)

	displayParser := harmony.NewParser()
	displayParser.AddImplicitStart()
	routerParser := harmony.NewParser()
	routerParser.AddImplicitStart()
	router := harmony.NewRouter(toolNames)

	phase := phaseAnswering
	var final, answerBuf, reasoningBuf []byte
	didAnswerEnd := false
	spinnerStopped := false

	for {
		f, err := reader.ReadFrame(0, 0)
		if !spinnerStopped {
			display.StopSpinning()
			spinnerStopped = true
		}
		if err != nil {
			return subturnResult{}, err
		}

		switch f.Kind {
		case frame.KindLog:
			display.ShowLog(f.Text)

		case frame.KindAnswer:
			for _, ev := range displayParser.Feed(f.Text) {
				switch tev := ev.(type) {
				case harmony.EventHeaderComplete:
					switch {
					case tev.Header.Recipient != "":
						phase = phaseToolCalling
					case tev.Header.Channel == "analysis":
						display.StartThinking()
						phase = phaseThinking
					case tev.Header.Channel == "commentary" || tev.Header.Channel == "final":
						display.EndThinking()
						phase = phaseAnswering
					}
				case harmony.EventContentEmitted:
					switch phase {
					case phaseAnswering:
						display.ShowAnswerDelta(tev.Content)
						final = append(final, tev.Content...)
					case phaseThinking:
						display.ShowReasoningDelta(tev.Content)
					case phaseToolCalling:
						// suppressed: raw tool-call JSON is not shown live
					}
				case harmony.EventMessageEnd:
					switch phase {
					case phaseThinking:
						display.EndThinking()
					case phaseAnswering:
						display.EndAnswer()
						didAnswerEnd = true
					}
					phase = phaseAnswering
				}
			}

			a, r, _ := router.Add(routerParser, f.Text)
			answerBuf = append(answerBuf, a...)
			reasoningBuf = append(reasoningBuf, r...)

		case frame.KindStop:
			if !didAnswerEnd {
				display.EndAnswer()
			}
			call, parseErr := router.Finalize()
			return subturnResult{
				final:     string(final),
				answer:    string(answerBuf),
				reasoning: string(reasoningBuf),
				call:      call,
				parseErr:  parseErr,
			}, nil

		case frame.KindRequest:
			// ignored mid-stream
		}
	}
}

type displayPhase int

const (
	phaseAnswering displayPhase = iota
	phaseThinking
	phaseToolCalling
)

// runToolCall gates, executes, and appends the result of a single
// tool call to history.
func (e *Engine) runToolCall(display Display, call *harmony.ToolCall, history *[]message.Message) {
	display.ShowToolCall(call.Name, string(call.Arguments))

	approved, denyReason := e.Approval.Gate(display, call.Name, call.Arguments, e.NonInteractive)
	if !approved {
		payload, _ := json.Marshal(map[string]any{
			"tool":      call.Name,
			"arguments": call.Arguments,
			"result":    map[string]any{"error": denyReason},
		})
		*history = append(*history, message.Tool(string(payload)))
		return
	}

	result := e.Registry.Call(call.Name, call.Arguments)
	display.ShowToolOutput(call.Name, result)

	payload, err := json.Marshal(map[string]any{
		"tool":      call.Name,
		"arguments": call.Arguments,
		"result":    result,
	})
	if err != nil {
		payload, _ = json.Marshal(map[string]any{
			"tool":   call.Name,
			"result": map[string]any{"error": err.Error()},
		})
	}
	*history = append(*history, message.Tool(string(payload)))
}

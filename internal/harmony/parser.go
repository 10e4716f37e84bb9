// Package harmony implements the Harmony channel-tagged streaming
// protocol: a chunk-safe byte-stream parser, a router that sorts
// parsed content into answer/reasoning/tool-call streams, and the
// function-name sanitization the protocol requires for tool
// recipients.
package harmony

import (
	"log/slog"
	"strings"
	"unicode"
)

type parserState int

const (
	stateLookingForMessageStart parserState = iota
	stateParsingHeader
	stateParsingContent
)

func (s parserState) String() string {
	switch s {
	case stateLookingForMessageStart:
		return "LookingForMessageStart"
	case stateParsingHeader:
		return "ParsingHeader"
	case stateParsingContent:
		return "ParsingContent"
	default:
		return "Unknown"
	}
}

// Parser is the Harmony byte-stream state machine. It is safe against
// tag splits across chunks: in ParsingContent it retains any buffered
// suffix that is a prefix of the end tag and only emits content ahead
// of it.
type Parser struct {
	state           parserState
	MessageStartTag string
	MessageEndTag   string
	ToolCallEndTag  string
	HeaderEndTag    string
	acc             strings.Builder
}

// NewParser returns a parser configured with the standard Harmony tags.
func NewParser() *Parser {
	return &Parser{
		MessageStartTag: "<|start|>",
		MessageEndTag:   "<|end|>",
		ToolCallEndTag:  "<|call|>",
		HeaderEndTag:    "<|message|>",
	}
}

// Event is one parsed Harmony event.
type Event interface{ isEvent() }

type EventMessageStart struct{}
type EventHeaderComplete struct{ Header Header }
type EventContentEmitted struct{ Content string }
type EventMessageEnd struct{}

func (EventMessageStart) isEvent()    {}
func (EventHeaderComplete) isEvent()  {}
func (EventContentEmitted) isEvent()  {}
func (EventMessageEnd) isEvent()      {}

// Header is the parsed content of a message header: the text between
// a start tag and the body tag.
type Header struct {
	Role      string
	Channel   string
	Recipient string
}

// LastMessage carries the minimal information AddImplicitStartOrPrefill
// needs about the previous assistant message to decide a resumption cue.
type LastMessage struct {
	Role    string
	Content string
	Thinking string
}

// AddImplicitStart prepends a synthetic assistant start tag, for
// stream sources that omit it (e.g. a fresh generation).
func (p *Parser) AddImplicitStart() {
	p.acc.WriteString("<|start|>assistant")
}

// AddImplicitStartOrPrefill prepends a synthetic start tag and, if the
// previous assistant message had visible or hidden content, also
// prefills the channel tag as a resumption cue.
func (p *Parser) AddImplicitStartOrPrefill(last *LastMessage) {
	if last != nil && last.Role == "assistant" {
		if last.Content != "" {
			p.acc.WriteString("<|start|>assistant<|channel|>final<|message|>")
			return
		}
		if last.Thinking != "" {
			p.acc.WriteString("<|start|>assistant<|channel|>analysis<|message|>")
			return
		}
	}
	p.AddImplicitStart()
}

// Feed appends content to the parser's buffer and returns the events
// that become unambiguous as a result. It may return multiple events
// per call, since one chunk can resolve several parser states.
func (p *Parser) Feed(content string) []Event {
	p.acc.WriteString(content)

	var events []Event
	for {
		newEvents, keepGoing := p.eat()
		events = append(events, newEvents...)
		if !keepGoing {
			break
		}
	}
	return events
}

func (p *Parser) eat() ([]Event, bool) {
	switch p.state {
	case stateLookingForMessageStart:
		cur := p.acc.String()
		if idx := strings.Index(cur, p.MessageStartTag); idx != -1 {
			before := cur[:idx]
			after := cur[idx+len(p.MessageStartTag):]
			if before != "" {
				slog.Warn("harmony: found message start tag in the middle of content", "content", cur)
			}
			p.acc.Reset()
			p.acc.WriteString(after)
			p.state = stateParsingHeader
			return []Event{EventMessageStart{}}, true
		}
		return nil, false

	case stateParsingHeader:
		cur := p.acc.String()
		if idx := strings.Index(cur, p.HeaderEndTag); idx != -1 {
			header := cur[:idx]
			after := cur[idx+len(p.HeaderEndTag):]
			p.acc.Reset()
			p.acc.WriteString(after)
			p.state = stateParsingContent
			return []Event{EventHeaderComplete{Header: parseHeader(header)}}, true
		}
		return nil, false

	case stateParsingContent:
		cur := p.acc.String()
		// <|call|> terminates a tool-call message the same way <|end|>
		// terminates any other; MessageEnd is emitted on either.
		endIdx := strings.Index(cur, p.MessageEndTag)
		endLen := len(p.MessageEndTag)
		if callIdx := strings.Index(cur, p.ToolCallEndTag); callIdx != -1 && (endIdx == -1 || callIdx < endIdx) {
			endIdx, endLen = callIdx, len(p.ToolCallEndTag)
		}
		if endIdx != -1 {
			content := cur[:endIdx]
			after := cur[endIdx+endLen:]
			p.acc.Reset()
			p.acc.WriteString(after)
			p.state = stateLookingForMessageStart

			var events []Event
			if content != "" {
				events = append(events, EventContentEmitted{Content: content})
			}
			events = append(events, EventMessageEnd{})
			return events, true
		}

		if n := max(overlap(cur, p.MessageEndTag), overlap(cur, p.ToolCallEndTag)); n > 0 {
			content := cur[:len(cur)-n]
			remaining := cur[len(cur)-n:]
			p.acc.Reset()
			p.acc.WriteString(remaining)
			if content == "" {
				return nil, false
			}
			return []Event{EventContentEmitted{Content: content}}, false
		}

		if cur == "" {
			return nil, false
		}
		p.acc.Reset()
		return []Event{EventContentEmitted{Content: cur}}, false
	}

	return nil, false
}

func parseHeader(raw string) Header {
	h := Header{}

	// A space before <|constrain|> ensures it tokenizes separately even
	// if the model emitted it glued to the preceding token.
	if strings.Contains(raw, "<|constrain|>") {
		raw = strings.Replace(raw, "<|constrain|>", " <|constrain|>", 1)
		raw = strings.TrimSpace(raw)
	}

	if idx := strings.Index(raw, "<|channel|>"); idx != -1 {
		before := raw[:idx]
		after := raw[idx+len("<|channel|>"):]
		end := strings.IndexFunc(after, unicode.IsSpace)
		if end == -1 {
			end = len(after)
		}
		h.Channel = after[:end]
		after = after[end:]
		raw = strings.TrimSpace(before + after)
	}

	tokens := strings.Fields(raw)
	if len(tokens) == 0 {
		slog.Error("harmony: missing role in header", "header", raw)
		return h
	}

	role := tokens[0]
	tokens = tokens[1:]
	if strings.HasPrefix(role, "to=") {
		h.Recipient = role[len("to="):]
		h.Role = "tool"
	} else {
		h.Role = role
	}

	if h.Recipient == "" && len(tokens) > 0 && strings.HasPrefix(tokens[0], "to=") {
		h.Recipient = tokens[0][len("to="):]
	}

	return h
}

// overlap returns the length of the longest suffix of s that is also
// a prefix of delim.
func overlap(s, delim string) int {
	max := min(len(delim), len(s))
	for i := max; i > 0; i-- {
		if strings.HasSuffix(s, delim[:i]) {
			return i
		}
	}
	return 0
}

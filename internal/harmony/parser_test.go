package harmony

import (
	"math/rand"
	"testing"
)

// S1 — Harmony parse, implicit start.
func TestImplicitStartAnalysisMessage(t *testing.T) {
	p := NewParser()
	p.AddImplicitStart()

	events := p.Feed("<|channel|>analysis<|message|>thinking<|end|>")

	want := []Event{
		EventMessageStart{},
		EventHeaderComplete{Header: Header{Role: "assistant", Channel: "analysis"}},
		EventContentEmitted{Content: "thinking"},
		EventMessageEnd{},
	}
	assertEventsEqual(t, events, want)
}

func assertEventsEqual(t *testing.T, got, want []Event) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("event count mismatch: got %d want %d (%+v)", len(got), len(want), got)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("event %d mismatch: got %+v want %+v", i, got[i], want[i])
		}
	}
}

// mergeContent joins each run of adjacent ContentEmitted events into
// one event carrying the concatenated content.
func mergeContent(events []Event) []Event {
	var out []Event
	for _, e := range events {
		if c, ok := e.(EventContentEmitted); ok && len(out) > 0 {
			if prev, ok := out[len(out)-1].(EventContentEmitted); ok {
				out[len(out)-1] = EventContentEmitted{Content: prev.Content + c.Content}
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// Property 1: parser chunk-invariance — feeding a byte string in any
// partition yields the same events as feeding it whole. The parser
// streams content as it arrives, so chunking may split one body into
// several ContentEmitted events; the comparison merges adjacent ones.
func TestParserChunkInvariance(t *testing.T) {
	raw := "<|start|>assistant<|channel|>analysis<|message|>let me think<|end|>" +
		"<|start|>assistant<|channel|>final<|message|>the answer is 42<|end|>"

	whole := NewParser()
	wantEvents := whole.Feed(raw)

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 25; trial++ {
		p := NewParser()
		var gotEvents []Event
		i := 0
		for i < len(raw) {
			n := 1 + rng.Intn(5)
			if i+n > len(raw) {
				n = len(raw) - i
			}
			gotEvents = append(gotEvents, p.Feed(raw[i:i+n])...)
			i += n
		}
		assertEventsEqual(t, mergeContent(gotEvents), mergeContent(wantEvents))
	}
}

// Boundary case: chunk split inside every tag.
func TestParserChunkSplitInsideEveryTag(t *testing.T) {
	tags := []string{"<|start|>", "<|message|>", "<|end|>", "<|call|>", "<|channel|>"}
	for _, tag := range tags {
		raw := "<|start|>assistant<|channel|>final<|message|>hello<|end|>"
		for split := 1; split < len(tag); split++ {
			if !contains(raw, tag) {
				continue
			}
			p := NewParser()
			idx := index(raw, tag)
			var events []Event
			events = append(events, p.Feed(raw[:idx+split])...)
			events = append(events, p.Feed(raw[idx+split:])...)
			// Just assert it doesn't panic and eventually terminates cleanly.
			foundEnd := false
			for _, e := range events {
				if _, ok := e.(EventMessageEnd); ok {
					foundEnd = true
				}
			}
			if !foundEnd {
				t.Fatalf("tag %q split at %d: expected a MessageEnd event eventually", tag, split)
			}
		}
	}
}

func contains(s, sub string) bool { return index(s, sub) >= 0 }
func index(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// <|call|> ends a tool-call message just like <|end|>, including when
// the tag is split across chunks.
func TestCallTagTerminatesMessage(t *testing.T) {
	raw := "<|start|>assistant<|channel|>commentary to=functions.run_command" +
		" <|constrain|>json<|message|>{\"argv\":[\"ls\"]}<|call|>"

	whole := NewParser()
	wantEvents := whole.Feed(raw)

	var sawEnd bool
	var content string
	for _, e := range wantEvents {
		switch tev := e.(type) {
		case EventContentEmitted:
			content += tev.Content
		case EventMessageEnd:
			sawEnd = true
		}
	}
	if !sawEnd {
		t.Fatal("expected MessageEnd on <|call|>")
	}
	if content != `{"argv":["ls"]}` {
		t.Fatalf("got content %q", content)
	}

	callIdx := index(raw, "<|call|>")
	for split := 1; split < len("<|call|>"); split++ {
		p := NewParser()
		var events []Event
		events = append(events, p.Feed(raw[:callIdx+split])...)
		events = append(events, p.Feed(raw[callIdx+split:])...)
		assertEventsEqual(t, events, wantEvents)
	}
}

// Header parsing: recipient can appear before or after the channel tag;
// with no role in front of to=, the role defaults to "tool".
func TestHeaderRecipientOrderInsensitive(t *testing.T) {
	cases := []string{
		"to=functions.get_weather <|channel|>commentary",
		"<|channel|>commentary to=functions.get_weather",
	}
	for _, raw := range cases {
		p := NewParser()
		events := p.Feed("<|start|>" + raw + "<|message|>{}<|end|>")
		var header Header
		for _, e := range events {
			if h, ok := e.(EventHeaderComplete); ok {
				header = h.Header
			}
		}
		if header.Recipient != "functions.get_weather" {
			t.Fatalf("case %q: got recipient %q", raw, header.Recipient)
		}
		if header.Channel != "commentary" {
			t.Fatalf("case %q: got channel %q", raw, header.Channel)
		}
		if header.Role != "tool" {
			t.Fatalf("case %q: got role %q, want tool (role defaults when to= leads)", raw, header.Role)
		}
	}
}

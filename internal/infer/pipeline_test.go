package infer

import (
	"context"
	"strings"
	"testing"

	"github.com/please-run/please/internal/message"
)

func drain(t *testing.T, pieces <-chan string) string {
	t.Helper()
	var sb strings.Builder
	for p := range pieces {
		sb.WriteString(p)
	}
	return sb.String()
}

func TestRunStreamsScriptedTokensUntilEOG(t *testing.T) {
	history := []message.Message{message.User("hi")}

	b := newMockBackend(8192, nil)
	plan := []Token{
		b.internToken("hello"),
		b.internToken("world"),
	}
	b.genPlan = plan

	pieces := make(chan string, 16)
	if err := Run(context.Background(), b, history, 4096, SamplerNucleus, pieces); err != nil {
		t.Fatal(err)
	}
	out := drain(t, pieces)
	if !strings.Contains(out, "hello") || !strings.Contains(out, "world") {
		t.Fatalf("expected generated text to contain scripted tokens, got %q", out)
	}
}

func TestTokenizeClipToCtxPreservesPreambleAndTail(t *testing.T) {
	b := newMockBackend(8192, nil)
	words := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		words = append(words, "w")
	}
	text := strings.Join(words, " ")

	toks, err := tokenizeClipToCtx(b, text, 5, 20)
	if err != nil {
		t.Fatal(err)
	}
	// limit = 19, keep = 5, tailRoom = 14 -> total 19 tokens
	if len(toks) != 19 {
		t.Fatalf("got %d tokens, want 19", len(toks))
	}
}

func TestComputePreambleLenClampsToCtxCap(t *testing.T) {
	b := newMockBackend(8192, nil)
	history := []message.Message{
		message.System(strings.Repeat("w ", 100)),
	}
	n, err := computePreambleLen(b, history, 10)
	if err != nil {
		t.Fatal(err)
	}
	if n > 9 {
		t.Fatalf("got %d, want <= ctxCap-1 (9)", n)
	}
}

func TestRebuildWithSlidingWindowKeepsPreamble(t *testing.T) {
	b := newMockBackend(8192, nil)
	rolling := make([]Token, 200)
	for i := range rolling {
		rolling[i] = Token(i)
	}

	compact, pos, _, err := rebuildWithSlidingWindow(context.Background(), b, rolling, 10, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(compact) != pos {
		t.Fatalf("pos %d should equal len(compact) %d", pos, len(compact))
	}
	for i := 0; i < 10; i++ {
		if compact[i] != rolling[i] {
			t.Fatalf("preamble not preserved at index %d: got %v want %v", i, compact[i], rolling[i])
		}
	}
	if len(compact) >= len(rolling) {
		t.Fatalf("expected compaction to shrink the window, got %d from %d", len(compact), len(rolling))
	}
}

func TestDetokenizerEmitsValidUTF8AcrossMultiByteSplit(t *testing.T) {
	// "é" = 0xC3 0xA9; feed it as two separate tokens to exercise the
	// incomplete-tail retention path.
	d := newDetokenizer(&splitByteBackend{vocab: map[Token][]byte{
		0: {0xC3},
		1: {0xA9},
	}})

	piece1, err := d.feed(0)
	if err != nil {
		t.Fatal(err)
	}
	if piece1 != "" {
		t.Fatalf("expected no output for incomplete sequence, got %q", piece1)
	}
	piece2, err := d.feed(1)
	if err != nil {
		t.Fatal(err)
	}
	if piece2 != "é" {
		t.Fatalf("got %q want %q", piece2, "é")
	}
}

func TestDetokenizerFlushEmitsReplacementCharForDanglingBytes(t *testing.T) {
	d := newDetokenizer(&splitByteBackend{vocab: map[Token][]byte{0: {0xC3}}})
	if _, err := d.feed(0); err != nil {
		t.Fatal(err)
	}
	if tail := d.flush(); tail != "�" {
		t.Fatalf("got %q want U+FFFD", tail)
	}
}

// splitByteBackend is a minimal Backend stub used only to unit-test
// the detokenizer's byte-accumulation behavior in isolation.
type splitByteBackend struct {
	vocab map[Token][]byte
}

func (s *splitByteBackend) NCtxTrain() int                             { return 8192 }
func (s *splitByteBackend) Tokenize(string, bool) ([]Token, error)     { return nil, nil }
func (s *splitByteBackend) TokenToBytes(t Token) ([]byte, error)       { return s.vocab[t], nil }
func (s *splitByteBackend) IsEOG(Token) bool                           { return false }
func (s *splitByteBackend) ClearKVCache()                              {}
func (s *splitByteBackend) Decode(context.Context, []BatchEntry) error { return nil }
func (s *splitByteBackend) LogitsAt(int) []float32                     { return nil }
func (s *splitByteBackend) VocabSize() int                             { return 0 }

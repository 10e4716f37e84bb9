package hub

import (
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/please-run/please/internal/frame"
	"github.com/please-run/please/internal/infer"
	"github.com/please-run/please/internal/message"
)

// scriptedBackend is a minimal infer.Backend double that tokenizes by
// splitting on spaces and always emits a single scripted reply
// followed immediately by end-of-generation.
type scriptedBackend struct {
	vocab  []string
	reply  string
	logits map[int][]float32
}

func newScriptedBackend(reply string) *scriptedBackend {
	return &scriptedBackend{vocab: []string{"<eog>"}, reply: reply, logits: map[int][]float32{}}
}

func (b *scriptedBackend) NCtxTrain() int { return 8192 }

func (b *scriptedBackend) Tokenize(text string, addBOS bool) ([]infer.Token, error) {
	var toks []infer.Token
	for _, w := range strings.Fields(text) {
		toks = append(toks, b.intern(w))
	}
	return toks, nil
}

func (b *scriptedBackend) intern(w string) infer.Token {
	for i, v := range b.vocab {
		if v == w {
			return infer.Token(i)
		}
	}
	b.vocab = append(b.vocab, w)
	return infer.Token(len(b.vocab) - 1)
}

func (b *scriptedBackend) TokenToBytes(t infer.Token) ([]byte, error) {
	if int(t) < 0 || int(t) >= len(b.vocab) {
		return nil, fmt.Errorf("unknown token %d", t)
	}
	return []byte(b.vocab[t] + " "), nil
}

func (b *scriptedBackend) IsEOG(t infer.Token) bool { return t == 0 }
func (b *scriptedBackend) ClearKVCache()            {}

func (b *scriptedBackend) Decode(ctx context.Context, batch []infer.BatchEntry) error {
	replyTok := b.intern(b.reply)
	next := replyTok
	for _, e := range batch {
		if e.Token == replyTok {
			// the reply has been decoded: end generation next
			next = 0
		}
	}
	for i, e := range batch {
		if !e.WantLogits {
			continue
		}
		logits := make([]float32, len(b.vocab)+4)
		for j := range logits {
			logits[j] = -10
		}
		logits[next] = 10
		b.logits[i] = logits
	}
	return nil
}

func (b *scriptedBackend) LogitsAt(idx int) []float32 {
	if l, ok := b.logits[idx]; ok {
		return l
	}
	out := make([]float32, len(b.vocab)+4)
	out[0] = 10
	return out
}

func (b *scriptedBackend) VocabSize() int { return len(b.vocab) + 4 }

func TestServeOneTurnStreamsAnswerThenStop(t *testing.T) {
	h := New(newScriptedBackend("ack"), 4096, infer.SamplerNucleus, nil)

	server, client := net.Pipe()
	defer client.Close()

	done := make(chan error, 1)
	go func() {
		done <- serveOneTurn(context.Background(), h, server, []message.Message{message.User("hi")})
	}()

	reader := frame.NewReader(client)
	var gotAnswer bool
	for {
		f, err := reader.ReadFrame(time.Second, 5*time.Second)
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if f.Kind == frame.KindAnswer {
			gotAnswer = true
			continue
		}
		if f.Kind == frame.KindStop {
			break
		}
		t.Fatalf("unexpected frame kind %v", f.Kind)
	}
	if !gotAnswer {
		t.Fatal("expected at least one Answer frame before Stop")
	}
	if err := <-done; err != nil {
		t.Fatalf("serveOneTurn returned error: %v", err)
	}
}

func TestServeConnectionHandlesMultipleTurnsThenDisconnect(t *testing.T) {
	h := New(newScriptedBackend("ok"), 4096, infer.SamplerNucleus, nil)

	server, client := net.Pipe()

	done := make(chan struct{})
	go func() {
		serveConnection(context.Background(), h, server)
		close(done)
	}()

	reader := frame.NewReader(client)
	sendAndExpectStop := func() {
		if err := frame.WriteFrame(client, frame.Request([]message.Message{message.User("hi")})); err != nil {
			t.Fatalf("write request: %v", err)
		}
		for {
			f, err := reader.ReadFrame(time.Second, 5*time.Second)
			if err != nil {
				t.Fatalf("read frame: %v", err)
			}
			if f.Kind == frame.KindStop {
				return
			}
		}
	}

	sendAndExpectStop()
	sendAndExpectStop()

	client.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serveConnection did not return after client disconnect")
	}
}

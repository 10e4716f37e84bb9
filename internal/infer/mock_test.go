package infer

import (
	"context"
	"fmt"
	"strings"
)

// mockBackend is a unit-test double: it tokenizes by splitting on
// spaces (plus a synthetic BOS token), "decodes" a token back to the
// word text it was assigned at tokenize time, and treats token id 0 as
// end-of-generation unless overridden.
type mockBackend struct {
	nCtxTrain int
	vocab     []string
	nextID    int32
	logits    map[int][]float32
	eogToken  Token
	genPlan   []Token // scripted tokens to emit during generation
	genIdx    int
}

func newMockBackend(nCtxTrain int, genPlan []Token) *mockBackend {
	return &mockBackend{
		nCtxTrain: nCtxTrain,
		vocab:     []string{"<eog>"},
		nextID:    1,
		logits:    make(map[int][]float32),
		eogToken:  0,
		genPlan:   genPlan,
	}
}

func (m *mockBackend) NCtxTrain() int { return m.nCtxTrain }

func (m *mockBackend) Tokenize(text string, addBOS bool) ([]Token, error) {
	var toks []Token
	if addBOS {
		toks = append(toks, m.internToken("<bos>"))
	}
	for _, w := range strings.Fields(text) {
		toks = append(toks, m.internToken(w))
	}
	return toks, nil
}

func (m *mockBackend) internToken(w string) Token {
	for i, v := range m.vocab {
		if v == w {
			return Token(i)
		}
	}
	m.vocab = append(m.vocab, w)
	return Token(len(m.vocab) - 1)
}

func (m *mockBackend) TokenToBytes(t Token) ([]byte, error) {
	if int(t) < 0 || int(t) >= len(m.vocab) {
		return nil, fmt.Errorf("unknown token %d", t)
	}
	return []byte(m.vocab[t] + " "), nil
}

func (m *mockBackend) IsEOG(t Token) bool { return t == m.eogToken }

func (m *mockBackend) ClearKVCache() {}

func (m *mockBackend) Decode(ctx context.Context, batch []BatchEntry) error {
	for i, e := range batch {
		if e.WantLogits {
			m.logits[i] = m.logitsForNextStep()
		}
	}
	return nil
}

// logitsForNextStep produces a logits vector that peaks at the next
// scripted token (or EOG once the script is exhausted), so the
// deterministic-argmax nucleus sampler reproduces genPlan exactly.
func (m *mockBackend) logitsForNextStep() []float32 {
	vocabSize := len(m.vocab) + 8
	out := make([]float32, vocabSize)
	var want Token
	if m.genIdx < len(m.genPlan) {
		want = m.genPlan[m.genIdx]
	} else {
		want = m.eogToken
	}
	m.genIdx++
	for i := range out {
		out[i] = -10
	}
	if int(want) < len(out) {
		out[want] = 10
	}
	return out
}

func (m *mockBackend) LogitsAt(idx int) []float32 {
	if l, ok := m.logits[idx]; ok {
		return l
	}
	return m.logitsForNextStep()
}

func (m *mockBackend) VocabSize() int { return len(m.vocab) + 8 }

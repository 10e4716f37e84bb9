// Package infer renders a chat history into a prompt, tokenizes and
// clips it to a context window, prefills and decodes through a
// Backend, and streams valid UTF-8 text pieces back to the caller.
//
// The actual tensor execution (loading weights, running the
// transformer forward pass) is delegated to an embedded inference
// library behind the Backend interface; this package owns only the
// orchestration around it: prompt assembly, context-window
// management, sampling policy, and detokenization.
package infer

import "context"

// Token is a single vocabulary entry id.
type Token int32

// Backend is the model execution surface this package drives. A real
// implementation wraps an embedded GGML/llama.cpp-style runtime; tests
// in this package use a mock.
type Backend interface {
	// NCtxTrain returns the model's native training context length.
	NCtxTrain() int

	// Tokenize converts text to token ids. addBOS controls whether a
	// beginning-of-sequence token is prepended.
	Tokenize(text string, addBOS bool) ([]Token, error)

	// TokenToBytes returns the raw bytes a token decodes to.
	TokenToBytes(t Token) ([]byte, error)

	// IsEOG reports whether t is an end-of-generation token.
	IsEOG(t Token) bool

	// ClearKVCache discards all cached key/value state.
	ClearKVCache()

	// Decode runs the forward pass over a batch of (token, position)
	// pairs. wantLogits marks which batch positions should have their
	// logits retained for sampling; Decode returns, for each true
	// entry in wantLogits, the logits row via the Backend's own
	// internal storage addressed later by LogitsAt.
	Decode(ctx context.Context, batch []BatchEntry) error

	// LogitsAt returns the logits row at batch index idx from the most
	// recent Decode call.
	LogitsAt(idx int) []float32

	// VocabSize returns the number of entries in the logits vector.
	VocabSize() int
}

// BatchEntry is one (token, position) pair submitted to Decode.
type BatchEntry struct {
	Token      Token
	Pos        int
	WantLogits bool
}

package infer

import (
	"context"
	"fmt"

	"github.com/please-run/please/internal/message"
	"github.com/please-run/please/internal/prompt"
)

// batchSize is the chunk size used for prefill and for post-compaction
// re-decode.
const batchSize = 512

// Run renders history, prefills, and streams generated text pieces
// into pieces until the model emits an end-of-generation token or the
// consumer stops reading.
func Run(ctx context.Context, b Backend, history []message.Message, ctxCap int, kind SamplerKind, pieces chan<- string) error {
	defer close(pieces)

	text := prompt.Render(history, true)

	preambleLen, err := computePreambleLen(b, history, ctxCap)
	if err != nil {
		return fmt.Errorf("compute preamble length: %w", err)
	}

	toks, err := tokenizeClipToCtx(b, text, preambleLen, ctxCap)
	if err != nil {
		return fmt.Errorf("tokenize prompt: %w", err)
	}

	b.ClearKVCache()
	logitsIdx, err := prefill(ctx, b, toks, 0)
	if err != nil {
		return fmt.Errorf("prefill: %w", err)
	}

	var sampler *Sampler
	switch kind {
	case SamplerMirostat:
		sampler = NewMirostatSampler(SeedFromClock())
	default:
		sampler = NewNucleusSampler(SeedFromClock())
	}
	sampler.WithTokens(toks)

	rolling := append([]Token(nil), toks...)
	pos := len(rolling)

	det := newDetokenizer(b)

	for {
		if pos >= ctxCap {
			compact, newPos, newLogitsIdx, err := rebuildWithSlidingWindow(ctx, b, rolling, preambleLen, ctxCap)
			if err != nil {
				return fmt.Errorf("rebuild kv cache: %w", err)
			}
			rolling = compact
			pos = newPos
			logitsIdx = newLogitsIdx
		}

		token := sampler.Sample(b.LogitsAt(logitsIdx))
		if b.IsEOG(token) {
			break
		}
		sampler.Accept(token)

		piece, err := det.feed(token)
		if err != nil {
			return fmt.Errorf("detokenize: %w", err)
		}
		if piece != "" {
			select {
			case pieces <- piece:
			case <-ctx.Done():
				return nil
			}
		}

		if err := b.Decode(ctx, []BatchEntry{{Token: token, Pos: pos, WantLogits: true}}); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		logitsIdx = 0
		pos++
		rolling = append(rolling, token)
	}

	if tail := det.flush(); tail != "" {
		select {
		case pieces <- tail:
		case <-ctx.Done():
		}
	}
	return nil
}

// computePreambleLen tokenizes just the pinned System/Developer prefix
// and returns its length, clamped to ctxCap-1.
func computePreambleLen(b Backend, history []message.Message, ctxCap int) (int, error) {
	n := message.PreambleLen(history)
	if n == 0 {
		return 0, nil
	}
	preambleText := prompt.Render(history[:n], false)
	toks, err := b.Tokenize(preambleText, false)
	if err != nil {
		return 0, err
	}
	length := len(toks)
	if limit := ctxCap - 1; length > limit {
		length = limit
	}
	if length < 0 {
		length = 0
	}
	return length, nil
}

// tokenizeClipToCtx tokenizes prompt and clips it to [preamble | most
// recent tail] if it exceeds ctxCap-1 tokens.
func tokenizeClipToCtx(b Backend, text string, preambleLen, ctxCap int) ([]Token, error) {
	toks, err := b.Tokenize(text, false)
	if err != nil {
		return nil, err
	}

	keep := preambleLen
	if keep > len(toks) {
		keep = len(toks)
	}

	limit := ctxCap - 1
	if limit < 0 {
		limit = 0
	}
	if len(toks) <= limit {
		return toks, nil
	}

	tailRoom := limit - keep
	if tailRoom < 0 {
		tailRoom = 0
	}
	start := len(toks) - tailRoom
	if start < 0 {
		start = 0
	}

	clipped := make([]Token, 0, keep+tailRoom)
	clipped = append(clipped, toks[:keep]...)
	clipped = append(clipped, toks[start:]...)
	return clipped, nil
}

// prefill decodes toks in chunks of batchSize, requesting logits only
// on the final token, and returns the batch index holding them.
func prefill(ctx context.Context, b Backend, toks []Token, startPos int) (int, error) {
	pos := startPos
	logitsIdx := 0
	for start := 0; start < len(toks); start += batchSize {
		end := start + batchSize
		if end > len(toks) {
			end = len(toks)
		}
		chunk := toks[start:end]
		entries := make([]BatchEntry, len(chunk))
		for i, t := range chunk {
			want := pos+i+1 == startPos+len(toks)
			if want {
				logitsIdx = i
			}
			entries[i] = BatchEntry{Token: t, Pos: pos + i, WantLogits: want}
		}
		if err := b.Decode(ctx, entries); err != nil {
			return 0, err
		}
		pos += len(chunk)
	}
	return logitsIdx, nil
}

// rebuildWithSlidingWindow recomputes the KV cache over
// [preamble | recent tail], leaving a slack margin so the next
// compaction doesn't trigger immediately.
func rebuildWithSlidingWindow(ctx context.Context, b Backend, rolling []Token, preambleLen, ctxCap int) ([]Token, int, int, error) {
	keep := preambleLen
	if keep > len(rolling) {
		keep = len(rolling)
	}

	availableTailRoom := ctxCap - 1 - keep
	if availableTailRoom < 0 {
		availableTailRoom = 0
	}
	slack := (ctxCap + 31) / 32
	if slack < 128 {
		slack = 128
	}
	if slack > availableTailRoom {
		slack = availableTailRoom
	}
	tailRoom := availableTailRoom - slack
	tailStart := len(rolling) - tailRoom
	if tailStart < 0 {
		tailStart = 0
	}

	compact := make([]Token, 0, keep+(len(rolling)-tailStart))
	compact = append(compact, rolling[:keep]...)
	compact = append(compact, rolling[tailStart:]...)

	b.ClearKVCache()
	logitsIdx, err := prefill(ctx, b, compact, 0)
	if err != nil {
		return nil, 0, 0, err
	}
	return compact, len(compact), logitsIdx, nil
}

package infer

import (
	"math"
	"sort"
)

// SamplerKind selects between the two supported sampling policies.
type SamplerKind int

const (
	SamplerMirostat SamplerKind = iota
	SamplerNucleus
)

// penaltyWindow bounds how many recently-accepted tokens count
// against the repetition penalty.
const penaltyWindow = 64

// Sampler holds penalty state and policy parameters across a single
// generation. Construct with NewMirostatSampler or NewNucleusSampler.
type Sampler struct {
	kind SamplerKind
	rng  *rng

	// shared penalty state
	recentTokens []Token
	penaltyRepeat float64

	// nucleus params
	topK  int
	topP  float64
	temp  float64

	// mirostat params
	tau float64
	eta float64
	mu  float64
}

// NewMirostatSampler builds the Mirostat-v2 chain: penalty 1.0, temp
// 1.0 (entropy is controlled by Mirostat), tau=5.0, eta=0.1.
func NewMirostatSampler(seed uint64) *Sampler {
	return &Sampler{
		kind:          SamplerMirostat,
		rng:           newRNG(seed),
		penaltyRepeat: 1.0,
		temp:          1.0,
		tau:           5.0,
		eta:           0.1,
		mu:            2 * 5.0,
	}
}

// NewNucleusSampler builds the nucleus chain: penalty 1.1, top-k 40,
// top-p 0.9, temp 0.8.
func NewNucleusSampler(seed uint64) *Sampler {
	return &Sampler{
		kind:          SamplerNucleus,
		rng:           newRNG(seed),
		penaltyRepeat: 1.1,
		topK:          40,
		topP:          0.9,
		temp:          0.8,
	}
}

// WithTokens primes the repetition-penalty state with the prompt
// tokens, matching the reference model's prompt-priming behavior.
func (s *Sampler) WithTokens(prompt []Token) *Sampler {
	s.recentTokens = append(s.recentTokens, prompt...)
	s.trimWindow()
	return s
}

// Accept records token into the penalty window after it's sampled.
func (s *Sampler) Accept(token Token) {
	s.recentTokens = append(s.recentTokens, token)
	s.trimWindow()
}

func (s *Sampler) trimWindow() {
	if len(s.recentTokens) > penaltyWindow {
		s.recentTokens = s.recentTokens[len(s.recentTokens)-penaltyWindow:]
	}
}

// Sample draws the next token from logits.
func (s *Sampler) Sample(logits []float32) Token {
	probs := s.applyPenaltyAndSoftmax(logits)
	switch s.kind {
	case SamplerMirostat:
		return s.sampleMirostat(probs)
	default:
		return s.sampleNucleus(probs)
	}
}

func (s *Sampler) applyPenaltyAndSoftmax(logits []float32) []float64 {
	seen := make(map[Token]bool, len(s.recentTokens))
	for _, t := range s.recentTokens {
		seen[t] = true
	}

	out := make([]float64, len(logits))
	for i, l := range logits {
		v := float64(l)
		if seen[Token(i)] && s.penaltyRepeat != 0 {
			if v > 0 {
				v /= s.penaltyRepeat
			} else {
				v *= s.penaltyRepeat
			}
		}
		out[i] = v
	}
	return out
}

func softmax(logits []float64, temp float64) []float64 {
	if temp <= 0 {
		temp = 1.0
	}
	maxL := logits[0]
	for _, l := range logits {
		if l > maxL {
			maxL = l
		}
	}
	sum := 0.0
	out := make([]float64, len(logits))
	for i, l := range logits {
		e := math.Exp((l - maxL) / temp)
		out[i] = e
		sum += e
	}
	if sum > 0 {
		for i := range out {
			out[i] /= sum
		}
	}
	return out
}

// sampleMirostat implements Mirostat v2: repeatedly reject tokens
// whose surprise exceeds mu, renormalize, and sample; adjust mu toward
// the target tau after accepting.
func (s *Sampler) sampleMirostat(logits []float64) Token {
	probs := softmax(logits, s.temp)

	type cand struct {
		tok  int
		prob float64
	}
	cands := make([]cand, len(probs))
	for i, p := range probs {
		cands[i] = cand{i, p}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].prob > cands[j].prob })

	kept := cands
	for i, c := range cands {
		surprise := -math.Log2(math.Max(c.prob, 1e-12))
		if surprise > s.mu {
			kept = cands[:i]
			break
		}
	}
	if len(kept) == 0 {
		kept = cands[:1]
	}

	sum := 0.0
	for _, c := range kept {
		sum += c.prob
	}
	r := s.rng.float64() * sum
	chosen := kept[len(kept)-1].tok
	acc := 0.0
	for _, c := range kept {
		acc += c.prob
		if r <= acc {
			chosen = c.tok
			break
		}
	}

	observedSurprise := -math.Log2(math.Max(probs[chosen], 1e-12))
	s.mu = s.mu - s.eta*(observedSurprise-s.tau)

	return Token(chosen)
}

// sampleNucleus implements top-k -> top-p -> temperature -> sample.
func (s *Sampler) sampleNucleus(logits []float64) Token {
	type cand struct {
		tok  int
		logit float64
	}
	cands := make([]cand, len(logits))
	for i, l := range logits {
		cands[i] = cand{i, l}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].logit > cands[j].logit })

	if s.topK > 0 && s.topK < len(cands) {
		cands = cands[:s.topK]
	}

	trimmed := make([]float64, len(cands))
	for i, c := range cands {
		trimmed[i] = c.logit
	}
	probs := softmax(trimmed, 1.0)

	cut := len(probs)
	if s.topP > 0 && s.topP < 1 {
		acc := 0.0
		for i, p := range probs {
			acc += p
			if acc >= s.topP {
				cut = i + 1
				break
			}
		}
	}
	cands = cands[:cut]
	probs = softmax(trimmed[:cut], s.temp)

	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	r := s.rng.float64() * sum
	chosen := cands[len(cands)-1].tok
	acc := 0.0
	for i, p := range probs {
		acc += p
		if r <= acc {
			chosen = cands[i].tok
			break
		}
	}
	return Token(chosen)
}

package infer

import "testing"

func TestNucleusSamplerPicksDominantLogit(t *testing.T) {
	s := NewNucleusSampler(42)
	logits := make([]float32, 10)
	for i := range logits {
		logits[i] = -10
	}
	logits[3] = 10
	if got := s.Sample(logits); got != 3 {
		t.Fatalf("got %d want 3", got)
	}
}

func TestSamplerAcceptAppliesRepetitionPenalty(t *testing.T) {
	s := NewNucleusSampler(1)
	logits := []float32{1, 1, 1}
	s.Accept(0)
	s.Accept(0)
	probs := s.applyPenaltyAndSoftmax(logits)
	if probs[0] >= probs[1] {
		t.Fatalf("expected repeated token 0 to be penalized below token 1: %v", probs)
	}
}

func TestMirostatSamplerProducesInRangeToken(t *testing.T) {
	s := NewMirostatSampler(7)
	logits := make([]float32, 20)
	for i := range logits {
		logits[i] = float32(i)
	}
	tok := s.Sample(logits)
	if tok < 0 || int(tok) >= len(logits) {
		t.Fatalf("token %d out of range", tok)
	}
}

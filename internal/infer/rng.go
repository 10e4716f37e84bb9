package infer

import (
	"math/rand"
	"time"
)

// rng is the sampler's source of randomness, seeded from wall-clock
// nanoseconds to match the reference sampler's seeding behavior.
type rng struct{ r *rand.Rand }

func newRNG(seed uint64) *rng {
	return &rng{r: rand.New(rand.NewSource(int64(seed)))}
}

func (g *rng) float64() float64 { return g.r.Float64() }

// SeedFromClock returns a seed derived from the current wall-clock
// time, matching the reference implementation's per-generation seed.
func SeedFromClock() uint64 {
	return uint64(time.Now().UnixNano())
}

// Package verification holds the simulated document, face and biometric
// estimators and the decision engine that turns their output into a verdict.
//
// Every simulated stage draws from an injected Rand so callers can seed it.
package verification

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Rand is the subset of *rand.Rand used by the simulated stages.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// NewRand returns a seeded PCG generator.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewTimeSeededRand returns a generator seeded from the wall clock.
func NewTimeSeededRand() *rand.Rand {
	return NewRand(uint64(time.Now().UnixNano()))
}

func uniform(rng Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

type lockedRand struct {
	mu sync.Mutex
	r  Rand
}

// NewLockedRand makes r safe for concurrent pipelines.
func NewLockedRand(r Rand) Rand {
	return &lockedRand{r: r}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

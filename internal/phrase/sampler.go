package phrase

import (
	"math/rand"
	"sync"
)

// Sampler draws random permutations. Implementations must be safe for concurrent use.
type Sampler interface {
	Perm(n int) []int
}

// RandSampler is a mutex-guarded math/rand source seeded once.
type RandSampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler returns a sampler seeded with seed.
func NewSampler(seed int64) *RandSampler {
	return &RandSampler{rng: rand.New(rand.NewSource(seed))}
}

// Perm returns a pseudo-random permutation of [0,n).
func (s *RandSampler) Perm(n int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Perm(n)
}

package sampler

import (
	"math/rand/v2"
	"sync"
)

type randomSampler struct{}

func (r *randomSampler) IntN(n int) int {
	return rand.IntN(n)
}

func (r *randomSampler) Shuffle(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}

// NewRandom returns a sampler backed by the runtime-seeded global source.
func NewRandom() Sampler {
	return &randomSampler{}
}

type seededSampler struct {
	mutex sync.Mutex
	rng   *rand.Rand
}

func (s *seededSampler) IntN(n int) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.rng.IntN(n)
}

func (s *seededSampler) Shuffle(n int, swap func(i, j int)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.rng.Shuffle(n, swap)
}

// NewSeeded returns a sampler whose sequence is fixed by seed.
func NewSeeded(seed uint64) Sampler {
	return &seededSampler{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

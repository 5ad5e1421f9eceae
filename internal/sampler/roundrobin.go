package sampler

import (
	"sync/atomic"
)

type roundRobinSampler struct {
	current uint64
}

func (rr *roundRobinSampler) IntN(n int) int {
	next := atomic.AddUint64(&rr.current, 1)

	return int((next - 1) % uint64(n))
}

// Shuffle keeps the original order.
func (rr *roundRobinSampler) Shuffle(n int, swap func(i, j int)) {}

// NewRoundRobin returns a sampler that hands out 0, 1, 2, ... modulo n and
// never reorders.
func NewRoundRobin() Sampler {
	return &roundRobinSampler{}
}

package sampler

// Sampler chooses indexes uniformly and permutes ordered lists.
type Sampler interface {
	// IntN returns a value in [0, n). n must be positive.
	IntN(n int) int
	// Shuffle permutes n elements through swap.
	Shuffle(n int, swap func(i, j int))
}

// Pick returns one element of items chosen by s.
// The second result is false when items is empty.
func Pick[T any](s Sampler, items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}

	return items[s.IntN(len(items))], true
}

// Shuffled returns a permuted copy of items; the input is left untouched.
func Shuffled[T any](s Sampler, items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	s.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})

	return out
}

package dataset

import "math/rand/v2"

// DefaultValFraction is the share of samples held out for validation.
const DefaultValFraction = 0.1

// Split shuffles the indices 0..n-1 with rng and returns the last
// int(n*valFraction) shuffled indices as validation, the rest as training.
func Split(n int, valFraction float64, rng *rand.Rand) (train, val []int) {
	if n <= 0 {
		return nil, nil
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	nVal := ValSize(n, valFraction)

	return idx[:n-nVal], idx[n-nVal:]
}

// ValSize is the number of validation samples for n samples, truncated and
// clamped to [0, n].
func ValSize(n int, valFraction float64) int {
	if valFraction <= 0 {
		return 0
	}

	nVal := int(float64(n) * valFraction)

	return min(nVal, n)
}

package sim

import (
	"math/rand"
	"sync"
)

// Rand is a mutex-guarded random source shared by the simulator, banks and
// event handlers. Event batches run on concurrent goroutines, so the single
// seeded source must be safe to share; a plain *rand.Rand is not.
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand creates a seeded source.
func NewRand(seed int64) *Rand {
	return &Rand{r: rand.New(rand.NewSource(seed))}
}

// Seed re-seeds the source, restarting its sequence.
func (r *Rand) Seed(seed int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.r = rand.New(rand.NewSource(seed))
}

// Float64 returns a uniform value in [0, 1).
func (r *Rand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Float64()
}

// IntN returns a uniform value in [0, n).
func (r *Rand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Intn(n)
}

// IntBetween returns a uniform value in [min, max], inclusive on both ends.
func (r *Rand) IntBetween(min, max int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return min + r.r.Intn(max-min+1)
}

// Uniform returns a uniform value in [min, max).
func (r *Rand) Uniform(min, max float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return min + r.r.Float64()*(max-min)
}

// Perm returns a random permutation of [0, n).
func (r *Rand) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Perm(n)
}

// Weighted returns an index drawn from weights, where each index's chance is
// proportional to its weight. All-zero weights degrade to a uniform draw.
func (r *Rand) Weighted(weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return r.IntN(len(weights))
	}

	target := r.Uniform(0, total)
	var cum float64
	for i, w := range weights {
		cum += w
		if target < cum {
			return i
		}
	}
	return len(weights) - 1
}

// pick returns a uniformly-chosen element of items. Callers guard against
// empty slices.
func pick[T any](r *Rand, items []T) T {
	return items[r.IntN(len(items))]
}

// Package simclock implements the synthetic clock that orders every
// simulated transaction. The clock never reads wall time: it keeps an
// integer tick counter on top of a base time and advances by a random,
// non-negative number of seconds, so successive timestamps are always
// non-decreasing and a fixed seed reproduces the same timeline.
//
// The clock is an explicit dependency injected into Bank and Simulator,
// never a package-level singleton, so multiple simulations can run isolated
// in the same process.
package simclock

import (
	"math/rand"
	"sync"
	"time"
)

// DefaultBase is the timeline origin used when no base time is supplied.
var DefaultBase = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock is a monotonic synthetic clock. Safe for concurrent use: debits and
// credits on different accounts advance it from separate goroutines.
type Clock struct {
	mu     sync.Mutex
	base   time.Time
	ticker int64
	limit  int64
	capped bool
	rng    *rand.Rand
}

// New creates a clock starting at base, with its own deterministic
// jitter source.
func New(base time.Time, seed int64) *Clock {
	return &Clock{
		base: base,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Advance moves the clock forward by a uniformly-random whole number of
// seconds in [0, maxSeconds] and returns the resulting timestamp. The tick
// counter never decreases. Under a limit, a step that would reach the limit
// stops one second short instead and marks the clock expired, so every
// returned timestamp stays strictly inside the limited window.
func (c *Clock) Advance(maxSeconds int) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if maxSeconds > 0 {
		c.ticker += c.rng.Int63n(int64(maxSeconds) + 1)
		if c.limit > 0 && c.ticker >= c.limit {
			c.ticker = c.limit - 1
			c.capped = true
		}
	}
	return c.base.Add(time.Duration(c.ticker) * time.Second)
}

// SetLimit caps the timeline at limit seconds past the base. A limit of 0
// removes the cap and clears the expired flag.
func (c *Clock) SetLimit(seconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit = seconds
	c.capped = false
}

// Expired reports whether an Advance has run into the limit.
func (c *Clock) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capped
}

// Now returns the current synthetic time without advancing it.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.Add(time.Duration(c.ticker) * time.Second)
}

// Elapsed returns the number of synthetic seconds since the base time.
func (c *Clock) Elapsed() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticker
}

// Reset reinitialises the clock to tick zero at the given base time, drops
// any limit and reseeds the jitter source, so a reset clock with the same
// seed reproduces the same timeline.
func (c *Clock) Reset(base time.Time, seed int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = base
	c.ticker = 0
	c.limit = 0
	c.capped = false
	c.rng = rand.New(rand.NewSource(seed))
}

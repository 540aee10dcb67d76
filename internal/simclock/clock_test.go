package simclock_test

import (
	"sync"
	"testing"
	"time"

	"okapi/banksim-api/internal/simclock"
)

func TestAdvance_NeverDecreases(t *testing.T) {
	c := simclock.New(simclock.DefaultBase, 1)

	prev := c.Now()
	for i := 0; i < 1000; i++ {
		now := c.Advance(60)
		if now.Before(prev) {
			t.Fatalf("clock went backwards: %v -> %v", prev, now)
		}
		prev = now
	}
}

func TestAdvance_BoundedJitter(t *testing.T) {
	c := simclock.New(simclock.DefaultBase, 7)

	for i := 0; i < 1000; i++ {
		before := c.Elapsed()
		c.Advance(10)
		step := c.Elapsed() - before
		if step < 0 || step > 10 {
			t.Fatalf("advance step %d outside [0, 10]", step)
		}
	}
}

func TestAdvance_ZeroMaxIsNoOp(t *testing.T) {
	c := simclock.New(simclock.DefaultBase, 1)
	c.Advance(100)

	before := c.Elapsed()
	c.Advance(0)
	if c.Elapsed() != before {
		t.Fatalf("Advance(0) moved the clock from %d to %d", before, c.Elapsed())
	}
}

func TestAdvance_LimitCapsTimeline(t *testing.T) {
	c := simclock.New(simclock.DefaultBase, 5)
	c.SetLimit(100)

	for i := 0; i < 200; i++ {
		now := c.Advance(30)
		if since := now.Sub(simclock.DefaultBase); since >= 100*time.Second {
			t.Fatalf("clock reached %v past the base under a 100s limit", since)
		}
	}
	if !c.Expired() {
		t.Fatal("clock never expired under a 100s limit")
	}

	c.SetLimit(0)
	if c.Expired() {
		t.Fatal("removing the limit left the clock expired")
	}
	for i := 0; i < 50; i++ {
		c.Advance(30)
	}
	if c.Elapsed() <= 100 {
		t.Fatalf("elapsed %d after removing the limit, want past 100", c.Elapsed())
	}
}

func TestNow_DoesNotAdvance(t *testing.T) {
	c := simclock.New(simclock.DefaultBase, 1)
	c.Advance(30)

	first := c.Now()
	second := c.Now()
	if !first.Equal(second) {
		t.Fatalf("Now advanced the clock: %v != %v", first, second)
	}
}

func TestReset_ReplaysTimeline(t *testing.T) {
	c := simclock.New(simclock.DefaultBase, 42)

	var first []time.Time
	for i := 0; i < 50; i++ {
		first = append(first, c.Advance(60))
	}

	c.Reset(simclock.DefaultBase, 42)
	for i := 0; i < 50; i++ {
		if got := c.Advance(60); !got.Equal(first[i]) {
			t.Fatalf("step %d: replay gave %v, want %v", i, got, first[i])
		}
	}
}

func TestElapsed_StartsAtZero(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := simclock.New(base, 3)

	if c.Elapsed() != 0 {
		t.Fatalf("fresh clock elapsed = %d, want 0", c.Elapsed())
	}
	if !c.Now().Equal(base) {
		t.Fatalf("fresh clock now = %v, want %v", c.Now(), base)
	}
}

func TestAdvance_ConcurrentUse(t *testing.T) {
	c := simclock.New(simclock.DefaultBase, 9)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.Advance(5)
			}
		}()
	}
	wg.Wait()

	if c.Elapsed() < 0 || c.Elapsed() > 8*200*5 {
		t.Fatalf("elapsed %d outside the possible range", c.Elapsed())
	}
}

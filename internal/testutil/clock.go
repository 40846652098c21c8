// Package testutil provides deterministic test doubles for the seams
// that would otherwise make a test non-reproducible: wall-clock time,
// trace id generation, and network transport. A reusable monotonic
// counter for the clock and an always-return-the-same-value generator
// for ids, carried over under names that match what they stand in for
// here (trace.Clock/trace.IDGenerator/transport.Transport).
package testutil

import (
	"sync"
	"time"
)

// FixedClock returns a preset instant every time, then advances by a
// fixed step on each call — enough determinism for tests that assert
// on duration_us without needing wall-clock time to actually pass.
// trace.Clock's contract is a time.Time, so this stands in with a
// configurable Step rather than a Next()-style increment.
type FixedClock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

// NewFixedClock returns a FixedClock starting at start, advancing by
// step on every Now call after the first.
func NewFixedClock(start time.Time, step time.Duration) *FixedClock {
	return &FixedClock{now: start, Step: step}
}

// Now returns the current fixed instant, then advances the clock by
// Step for the next call.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.Step)
	return t
}

// Reset returns the clock to start, for scenario reuse across table
// test cases.
func (c *FixedClock) Reset(start time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = start
}

package testutil

import (
	"sync"
	"time"
)

// StepClock is a deterministic clock for tests.
//
// Every call to Now advances the clock by a fixed step, so an engine call
// that reads the clock once at start and once at finish always measures
// exactly one step.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewStepClock creates a clock starting at 2024-01-01T00:00:00Z.
//
// A step of zero or less defaults to one millisecond.
func NewStepClock(step time.Duration) *StepClock {
	if step <= 0 {
		step = time.Millisecond
	}
	return &StepClock{
		now:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		step: step,
	}
}

// Now returns the current time and advances the clock by one step.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Step returns the fixed step.
func (c *StepClock) Step() time.Duration {
	return c.step
}

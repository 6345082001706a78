package testsupport

import (
	"sync"
	"time"
)

// Clock is a settable wall clock for deterministic window and retention tests.
//
// Thread-safe: all methods lock an internal mutex.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// FixedClock returns a clock frozen at 2024-03-15 09:30:00 UTC.
func FixedClock() *Clock {
	return NewClock(time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC))
}

// Now returns the current frozen time. Pass it as a Clock func.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Package clock provides time abstraction for testability.
//
// Outbox backoff gating and lock timestamps depend on "now"; calling
// clock.Now() instead of time.Now() lets tests pin time with a FixedClock.
//
// Usage:
//
//	// Production code (uses real time by default)
//	due := ev.Due(baseDelay, clock.Now())
//
//	// Tests (inject fixed time)
//	clock.Set(clock.FixedClock{Time: fixedTime})
//	t.Cleanup(clock.Reset)
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// Package-level clock (default: real time)
var (
	mu      sync.RWMutex
	current Clock = RealClock{}
)

// Now returns the current time from the active clock.
func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return current.Now()
}

// Set replaces the active clock. Use for testing.
func Set(c Clock) {
	mu.Lock()
	defer mu.Unlock()
	current = c
}

// Reset restores the real clock. Call in test cleanup.
func Reset() {
	Set(RealClock{})
}

// RealClock uses the actual system time.
type RealClock struct{}

// Now returns the current UTC time.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a predetermined time. Useful for unit tests.
type FixedClock struct {
	Time time.Time
}

// Now returns the fixed time.
func (c FixedClock) Now() time.Time {
	return c.Time
}

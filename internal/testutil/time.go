package testutil

import (
	stdsync "sync"
	"time"
)

// BaseTime is the pinned start instant used across deterministic tests
// and golden traces.
var BaseTime = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// SteppedNow returns a wall-clock source that starts at start and
// advances by step on every call. Deterministic timestamps without
// sleeping.
func SteppedNow(start time.Time, step time.Duration) func() time.Time {
	var mu stdsync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(step)
		return now
	}
}

// FrozenNow returns a wall-clock source pinned to a single instant.
func FrozenNow(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

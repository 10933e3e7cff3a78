package feed

import "time"

// Clock is an interface for accessing time and scheduling delays. The
// synchronizer depends on this abstraction rather than the time package
// directly so the reconnect delay can be driven deterministically in
// tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// After returns a channel that receives the current time after d
	// has elapsed.
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the wall-clock implementation of Clock
type SystemClock struct{}

// Now returns the current wall-clock time. Implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// After defers to time.After. Implements Clock.
func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Package timeutil provides a testable abstraction over wall-clock time.
//
// Analyzers never read the clock: they work purely on frame timestamps. The
// clock is only used by session bookkeeping (start/stop stamps, elapsed time).
package timeutil

import (
	"sync"
	"time"
)

// Clock provides an abstraction over time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// MockClock is a manually controlled clock for testing.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a new MockClock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now returns the mocked current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set sets the mock clock to a specific time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the mock clock forward by the given duration.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Since returns the duration since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// StreamClock follows a recorded frame stream: Now is the anchor plus the
// timestamp of the latest observed frame. Timestamps never move it backwards.
type StreamClock struct {
	mu     sync.Mutex
	anchor time.Time
	offset time.Duration
}

// NewStreamClock creates a clock whose frame timestamp zero maps to anchor.
func NewStreamClock(anchor time.Time) *StreamClock {
	return &StreamClock{anchor: anchor}
}

// Observe advances the clock to the frame timestamp ts.
func (c *StreamClock) Observe(ts time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts > c.offset {
		c.offset = ts
	}
}

// Now returns the anchor plus the latest observed timestamp.
func (c *StreamClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.anchor.Add(c.offset)
}

// Since returns the stream time elapsed since t.
func (c *StreamClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

package timeutil

import (
	"testing"
	"time"
)

func TestMockClock(t *testing.T) {
	start := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	if !c.Now().Equal(start) {
		t.Fatalf("Now() = %v, want %v", c.Now(), start)
	}

	c.Advance(1500 * time.Millisecond)
	if got := c.Since(start); got != 1500*time.Millisecond {
		t.Errorf("Since() = %v, want 1.5s", got)
	}

	later := start.Add(time.Hour)
	c.Set(later)
	if !c.Now().Equal(later) {
		t.Errorf("Set did not move the clock: %v", c.Now())
	}
}

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	before := time.Now()
	if c.Now().Before(before) {
		t.Error("RealClock.Now() went backwards")
	}
	if c.Since(before) < 0 {
		t.Error("RealClock.Since() negative")
	}
}

func TestStreamClock(t *testing.T) {
	anchor := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	var c Clock = NewStreamClock(anchor)
	sc := c.(*StreamClock)

	if !c.Now().Equal(anchor) {
		t.Fatalf("Now() = %v, want anchor", c.Now())
	}
	sc.Observe(2 * time.Second)
	sc.Observe(1 * time.Second) // late frame
	if got := c.Since(anchor); got != 2*time.Second {
		t.Errorf("Since(anchor) = %v, want 2s", got)
	}
}

// Package timeutil provides a testable abstraction over time sources.
//
// The counting pipeline runs on two clocks: a session wall-clock (uptime,
// crossing rates) and a per-observation logical clock (timestamps fed to the
// tracker, which for video input derive from frame numbers rather than the
// wall). Clock abstracts the first; FrameClock derives the second.
package timeutil

import (
	"sync"
	"time"
)

// Clock is a minimal time source: the current instant and elapsed time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration elapsed since t.
	Since(t time.Time) time.Duration
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current wall-clock time.
func (RealClock) Now() time.Time { return time.Now() }

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

// MockClock is a manually controlled clock for tests.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a MockClock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now returns the mocked current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Since returns the duration since t relative to the mocked time.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Set moves the mock clock to a specific time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the mock clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// FrameClock converts frame indices of a fixed-rate video stream into
// timestamps offset from a base instant. Frame 0 maps to the base time.
// Using frame-derived timestamps keeps counting semantics (cooldown, stale
// eviction) tied to video time, so replaying a file faster or slower than
// realtime does not change the counts.
type FrameClock struct {
	base time.Time
	fps  float64
}

// NewFrameClock returns a FrameClock for a stream at the given frames per
// second. A non-positive fps falls back to 30.
func NewFrameClock(base time.Time, fps float64) *FrameClock {
	if fps <= 0 {
		fps = 30
	}
	return &FrameClock{base: base, fps: fps}
}

// At returns the timestamp of the given frame index.
func (c *FrameClock) At(frame int) time.Time {
	offset := time.Duration(float64(frame) / c.fps * float64(time.Second))
	return c.base.Add(offset)
}

// FPS returns the configured frame rate.
func (c *FrameClock) FPS() float64 { return c.fps }

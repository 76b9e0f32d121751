package clock

import (
	"sync"
	"time"
)

// Clock is a small abstraction for obtaining the current time.
type Clock interface {
	Now() time.Time
}

// RealClock returns the real current time.
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// FakeClock is a controllable clock for tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake creates a FakeClock set to t.
func NewFake(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

// Now returns the fake current time.
func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the fake clock to t, which may be in the past.
func (f *FakeClock) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Advance moves the fake clock forward by d.
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Monotonic wraps a Clock so that successive readings never go backwards.
// Readings within the same tick may be equal.
type Monotonic struct {
	mu    sync.Mutex
	clock Clock
	last  time.Time
}

// NewMonotonic wraps c. A nil c uses RealClock.
func NewMonotonic(c Clock) *Monotonic {
	if c == nil {
		c = RealClock{}
	}
	return &Monotonic{clock: c}
}

// Now returns max(previous reading, c.Now()).
func (m *Monotonic) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now().UTC()
	if now.Before(m.last) {
		return m.last
	}
	m.last = now
	return now
}

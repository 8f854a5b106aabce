// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"sync"
	"time"
)

// DefaultFakeTime is the starting time of a FakeClock created with a zero time.
var DefaultFakeTime = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// FakeClock is a manually controlled time source. Pass its Now method
// wherever production code accepts a func() time.Time. Time only advances
// when Advance or Set is called.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewFakeClock creates a FakeClock initialized to the given time.
// If initial is zero, DefaultFakeTime is used.
func NewFakeClock(initial time.Time) *FakeClock {
	if initial.IsZero() {
		initial = DefaultFakeTime
	}
	return &FakeClock{current: initial}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Since returns the fake time elapsed since t.
func (c *FakeClock) Since(t time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Sub(t)
}

// Advance moves the fake time forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set sets the fake time to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

package clock

import "time"

// Clock abstracts the current time so session code never reads the wall
// clock directly.
type Clock interface {
	Now() time.Time
}

type clock struct{}

// New returns a Clock backed by the system time.
func New() Clock {
	return &clock{}
}

func (c *clock) Now() time.Time {
	return time.Now()
}

// ManagedClock is a hand-advanced clock for tests.
type ManagedClock struct {
	start  time.Time
	offset time.Duration
}

// NewManaged returns a ManagedClock frozen at start.
func NewManaged(start time.Time) *ManagedClock {
	return &ManagedClock{start: start}
}

// Now returns the current managed time.
func (c *ManagedClock) Now() time.Time {
	return c.start.Add(c.offset)
}

// Advance moves the managed time forward and returns the new time. Time never
// moves backwards, so there is no inverse.
func (c *ManagedClock) Advance(d time.Duration) time.Time {
	c.offset += d
	return c.start.Add(c.offset)
}

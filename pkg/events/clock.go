package events

import (
	"context"
	"sync"
	"time"
)

// VirtualClock is a clock that only moves when waited on. Paired with a
// ScriptSource it streams a script as fast as possible while every consumer
// still observes the script's own timestamps.
type VirtualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewVirtualClock returns a clock reading start.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

// Now returns the current virtual time.
func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// WaitUntil jumps the clock forward to deadline without sleeping. The clock
// never moves backwards.
func (c *VirtualClock) WaitUntil(ctx context.Context, deadline time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if deadline.After(c.now) {
		c.now = deadline
	}
	c.mu.Unlock()
	return nil
}

// SleepUntil blocks until clock reads deadline or ctx is done. The wait is
// computed from an absolute deadline so repeated calls do not drift.
func SleepUntil(ctx context.Context, clock func() time.Time, deadline time.Time) error {
	wait := deadline.Sub(clock())
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Package clock provides uint32 UNIX timestamps for uplink report envelopes.
//
// NowUnique returns strictly increasing values even when several frames
// arrive within the same second, so reports from a single station can be
// ordered by timestamp alone. Hosts without a battery-backed RTC can rebase
// the clock from a GPS fix with SetReference.
package clock

import (
	"sync"
	"time"
)

// Clock produces uint32 UNIX epoch timestamps.
type Clock struct {
	mu         sync.Mutex
	lastUnique uint32
	nowFn      func() uint32 // overridable for testing
}

// New creates a Clock backed by the system clock.
func New() *Clock {
	return &Clock{
		nowFn: func() uint32 {
			return uint32(time.Now().Unix())
		},
	}
}

// Now returns the current UNIX epoch time.
func (c *Clock) Now() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowFn()
}

// SetReference rebases the clock on an external timestamp, typically the
// FixTime of a received position frame. Subsequent reads advance with real
// time from the given value.
func (c *Clock) SetReference(t uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	base := time.Now()
	c.nowFn = func() uint32 {
		return t + uint32(time.Since(base).Seconds())
	}
}

// NowUnique returns a strictly increasing timestamp. When the clock has not
// advanced past the last returned value the result is bumped by one, so two
// frames stamped within the same wall-clock second still order correctly.
func (c *Clock) NowUnique() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.nowFn()
	if t <= c.lastUnique {
		c.lastUnique++
		return c.lastUnique
	}
	c.lastUnique = t
	return t
}

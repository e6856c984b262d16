package service

import (
	"time"

	"github.com/espixelstick/esps-go/pkg/clock"
)

// loopClock wraps a clock so that every timer callback runs on the
// session loop. A timer stopped on the loop never runs its callback,
// even if the underlying timer already fired and the callback is
// waiting in the inbox.
type loopClock struct {
	clock clock.Clock
	post  func(func()) bool
}

func (c *loopClock) Now() time.Time { return c.clock.Now() }

func (c *loopClock) After(d time.Duration) <-chan time.Time { return c.clock.After(d) }

// AfterFunc must be called on the loop. The returned timer must only be
// stopped on the loop.
func (c *loopClock) AfterFunc(d time.Duration, f func()) *clock.Timer {
	done := false
	inner := c.clock.AfterFunc(d, func() {
		c.post(func() {
			if done {
				return
			}
			done = true
			f()
		})
	})
	return clock.NewTimer(func() bool {
		if done {
			return false
		}
		done = true
		inner.Stop()
		return true
	})
}

var _ clock.Clock = (*loopClock)(nil)

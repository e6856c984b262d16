// Package clock abstracts timers so that queue timeouts, heartbeats and
// reconnect delays can be driven deterministically in tests.
package clock

import "time"

// Scheduler arms one-shot callbacks.
type Scheduler interface {
	// AfterFunc calls f after d elapses. The returned Timer cancels
	// the pending call.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Clock is a Scheduler that also reports the current time.
type Clock interface {
	Scheduler

	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the time after d elapses.
	After(d time.Duration) <-chan time.Time
}

// Timer represents a scheduled callback.
type Timer struct {
	stopFunc func() bool
}

// NewTimer returns a Timer whose Stop calls stop. Schedulers that wrap
// another Scheduler use it to layer their own cancellation.
func NewTimer(stop func() bool) *Timer {
	return &Timer{stopFunc: stop}
}

// Stop prevents the callback from running. Returns true if the call
// stopped the timer, false if it already fired or was stopped.
// Stop on a nil Timer is a no-op.
func (t *Timer) Stop() bool {
	if t == nil || t.stopFunc == nil {
		return false
	}
	return t.stopFunc()
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stopFunc: t.Stop}
}

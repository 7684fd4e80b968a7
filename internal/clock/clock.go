// Package clock provides an injectable time source so the display loop can
// be driven deterministically in tests.
//
// Production code uses Real(). Tests use Fake(t) and move time forward with
// Advance; AfterFunc callbacks registered on a fake clock run synchronously
// inside Advance, in deadline order.
package clock

import "time"

// Clock is the subset of the time package the scheduler and controllers use.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f once d has elapsed. Stop on the returned Timer
	// cancels a pending call.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a cancellable pending AfterFunc call.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the call from running. It reports whether the call was
// still pending.
func (t *Timer) Stop() bool {
	if t == nil || t.stopFunc == nil {
		return false
	}
	return t.stopFunc()
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stopFunc: t.Stop}
}

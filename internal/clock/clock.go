// Package clock abstracts time so the reactor's timer wheel and the
// protocols that schedule timeouts can be driven deterministically in
// tests.
package clock

import "time"

// Clock provides the time-related primitives the reactor needs.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTimer(d time.Duration) Timer
}

// Timer is the subset of *time.Timer the wheel relies on, so tests can
// substitute a fake that fires on demand instead of waiting on the
// real clock.
type Timer interface {
	C() <-chan time.Time
	Reset(d time.Duration) bool
	Stop() bool
}

// Default delegates every operation to the time package.
var Default Clock = defaultClock{}

type defaultClock struct{}

func (defaultClock) Now() time.Time                       { return time.Now() }
func (defaultClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (defaultClock) NewTimer(d time.Duration) Timer {
	return &realTimer{t: time.NewTimer(d)}
}

type realTimer struct {
	t *time.Timer
}

func (r *realTimer) C() <-chan time.Time      { return r.t.C }
func (r *realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }
func (r *realTimer) Stop() bool               { return r.t.Stop() }

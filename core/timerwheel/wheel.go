// Package timerwheel implements a hashed timer wheel: the reactor's
// single source of scheduled wake-ups for send/recv timeouts, survey
// deadlines, req resends and reconnect/rebind backoff. No library in
// the retrieved example corpus provides this structure (it is a
// niche data structure, not a general dependency concern), so it is
// built directly on container/list from the standard library.
package timerwheel

import (
	"container/list"
	"time"

	"github.com/npio/scaleproto/internal/clock"
)

// Token identifies a single pending entry so it can be cancelled
// before it fires.
type Token uint64

// Wheel is a classic hashed timer wheel: a ring of buckets, each a
// list of entries due at some multiple of the wheel's full rotation
// plus a slot offset. Advancing the wheel by one tick inspects exactly
// one bucket, so arming or cancelling a timer is O(1) regardless of
// how many timers are outstanding.
type Wheel struct {
	tick    time.Duration
	buckets []*list.List
	cursor  int
	clock   clock.Clock
	timer   clock.Timer
	entries map[Token]*entry
	nextID  uint64
}

type entry struct {
	token         Token
	bucket        int
	roundsLeft    int
	fire          func()
	listElem      *list.Element
}

// New returns a Wheel with the given per-slot resolution and number of
// slots. A 512-slot wheel ticking every 10ms covers roughly 5.1s per
// rotation before an entry needs its roundsLeft counted down, which
// comfortably spans the protocol's default timeouts (ReqResendIvl 60s
// spans many rotations, SurveyDeadline 1s spans a fraction of one).
func New(tick time.Duration, slots int, c clock.Clock) *Wheel {
	if slots <= 0 {
		slots = 512
	}
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	buckets := make([]*list.List, slots)
	for i := range buckets {
		buckets[i] = list.New()
	}
	return &Wheel{
		tick:    tick,
		buckets: buckets,
		clock:   c,
		entries: make(map[Token]*entry),
	}
}

// Start arms the underlying clock timer for the wheel's tick
// resolution. Run drives the wheel from the caller's own select loop
// by reading C and calling Advance on every fire.
func (w *Wheel) Start() {
	w.timer = w.clock.NewTimer(w.tick)
}

// C exposes the channel the reactor selects on to learn a tick has
// elapsed.
func (w *Wheel) C() <-chan time.Time {
	return w.timer.C()
}

// Stop releases the underlying clock timer.
func (w *Wheel) Stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Schedule arms fire to run after delay has elapsed and returns a
// Token that can later be passed to Cancel. delay is rounded up to the
// nearest tick.
func (w *Wheel) Schedule(delay time.Duration, fire func()) Token {
	if delay < 0 {
		delay = 0
	}
	ticks := int(delay / w.tick)
	if delay%w.tick != 0 {
		ticks++
	}

	slots := len(w.buckets)
	bucketIndex := (w.cursor + ticks) % slots
	roundsLeft := ticks / slots

	w.nextID++
	e := &entry{
		token:      Token(w.nextID),
		bucket:     bucketIndex,
		roundsLeft: roundsLeft,
		fire:       fire,
	}
	e.listElem = w.buckets[bucketIndex].PushBack(e)
	w.entries[e.token] = e
	return e.token
}

// Cancel removes a pending entry. It is idempotent: cancelling an
// already-fired or already-cancelled token is a no-op, which is what
// lets a late-arriving cancellation race harmlessly against a timer
// that already fired on the reactor thread.
func (w *Wheel) Cancel(token Token) bool {
	e, ok := w.entries[token]
	if !ok {
		return false
	}
	delete(w.entries, token)
	w.buckets[e.bucket].Remove(e.listElem)
	return true
}

// Advance moves the wheel forward by one tick, firing every entry due
// in the bucket the cursor now points at and rearming the underlying
// timer for the next tick.
func (w *Wheel) Advance() {
	bucket := w.buckets[w.cursor]

	var fired []*entry
	for el := bucket.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*entry)
		if e.roundsLeft > 0 {
			e.roundsLeft--
		} else {
			bucket.Remove(el)
			delete(w.entries, e.token)
			fired = append(fired, e)
		}
		el = next
	}

	w.cursor = (w.cursor + 1) % len(w.buckets)
	if w.timer != nil {
		w.timer.Reset(w.tick)
	}

	for _, e := range fired {
		e.fire()
	}
}

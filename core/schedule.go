package core

import (
	"time"

	"github.com/npio/scaleproto/core/timerwheel"
)

// Schedule is the dispatcher's single timer wheel, shared by every
// socket, plus the bookkeeping needed to turn a fired wheel entry back
// into a (SocketId, Schedulable) pair the dispatcher can route to the
// right protocol.
type Schedule struct {
	wheel   *timerwheel.Wheel
	entries map[Scheduled]*scheduleEntry
	seq     sequence
	fired   chan firedEntry
}

type scheduleEntry struct {
	token    timerwheel.Token
	socketId SocketId
	payload  Schedulable
}

type firedEntry struct {
	socketId SocketId
	payload  Schedulable
}

// NewSchedule wraps wheel with the dispatcher-facing bookkeeping. fired
// is buffered generously since Advance fires every due entry inline,
// synchronously, from the dispatcher's own goroutine.
func NewSchedule(wheel *timerwheel.Wheel) *Schedule {
	return &Schedule{
		wheel:   wheel,
		entries: make(map[Scheduled]*scheduleEntry),
		fired:   make(chan firedEntry, 64),
	}
}

// Insert arms a wheel entry for socketId and returns the handle used
// to cancel it.
func (s *Schedule) Insert(socketId SocketId, delay time.Duration, payload Schedulable) Scheduled {
	id := s.seq.nextScheduled()
	e := &scheduleEntry{socketId: socketId, payload: payload}
	e.token = s.wheel.Schedule(delay, func() {
		s.fired <- firedEntry{socketId: socketId, payload: payload}
		delete(s.entries, id)
	})
	s.entries[id] = e
	return id
}

// Remove cancels a pending entry. A no-op if it already fired.
func (s *Schedule) Remove(id Scheduled) {
	e, ok := s.entries[id]
	if !ok {
		return
	}
	s.wheel.Cancel(e.token)
	delete(s.entries, id)
}

// Poll drains every entry that fired since the last call, without
// blocking. The dispatcher calls it right after advancing the wheel.
func (s *Schedule) Poll() []firedEntry {
	var out []firedEntry
	for {
		select {
		case f := <-s.fired:
			out = append(out, f)
		default:
			return out
		}
	}
}

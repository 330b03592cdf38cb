package core

import "sync/atomic"

// SocketId identifies a socket within a Session.
type SocketId uint64

// EndpointId identifies a pipe or an acceptor within an EndpointCollection.
// EndpointIds are never reused: closing an endpoint retires its id for
// good, so a stale signal referencing a dead id is simply dropped instead
// of silently addressing whatever id was allocated next.
type EndpointId uint64

// Scheduled is an opaque handle to a pending timer wheel entry, returned
// by Scheduler.Schedule and required by Scheduler.Cancel.
type Scheduled uint64

// sequence is a monotonic counter. A Session numbers its SocketIds and
// a Schedule its Scheduled handles, each with a sequence of its own,
// and every transport numbers its EndpointIds with a counter of its
// own, so a SocketId, an EndpointId and a Scheduled value can carry the
// same number; each is unique only among the ids its allocator handed
// out.
type sequence struct {
	next uint64
}

func (s *sequence) nextValue() uint64 {
	return atomic.AddUint64(&s.next, 1)
}

func (s *sequence) nextSocketId() SocketId     { return SocketId(s.nextValue()) }
func (s *sequence) nextEndpointId() EndpointId { return EndpointId(s.nextValue()) }
func (s *sequence) nextScheduled() Scheduled   { return Scheduled(s.nextValue()) }

// reservedTokens is the number of poll tokens carved out of the token
// space before EndpointIds start. The dispatcher reserves the top three
// values for the request channel, the signal bus and the timer so an
// EndpointId can never collide with them.
const reservedTokens = 3

const (
	tokenChannel uint64 = ^uint64(0) - 0
	tokenBus     uint64 = ^uint64(0) - 1
	tokenTimer   uint64 = ^uint64(0) - 2
)

// token converts an EndpointId into the integer token space a poller
// would use to key its readiness notifications.
func (e EndpointId) token() uint64 { return uint64(e) }

// endpointFromToken is the inverse of EndpointId.token, used by the
// dispatcher when it decodes an I/O readiness notification.
func endpointFromToken(t uint64) EndpointId { return EndpointId(t) }

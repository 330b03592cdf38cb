package core

import (
	"time"

	"github.com/npio/scaleproto/internal/log"
)

// Socket is the dispatcher's per-socket state: the protocol state
// machine, its endpoint registry, its configuration, and at most one
// parked Send and one parked Recv request waiting on a readiness
// event or a timeout.
type Socket struct {
	Id        SocketId
	Protocol  Protocol
	Endpoints *EndpointCollection
	Config    Config
	log       log.T

	pendingSend *parkedRequest
	pendingRecv *parkedRequest
}

// parkedRequest is a façade call the dispatcher could not satisfy
// immediately: Send returned WouldBlock with a non-zero timeout, or
// Recv found nothing to return yet. It is retried on the matching
// CanSend/CanRecv event and abandoned with a TimedOut error if its
// deadline fires first.
type parkedRequest struct {
	reply    chan Reply
	msg      Message
	deadline Scheduled
	hasDeadline bool
}

// NewSocket builds a Socket around protocol with default
// configuration and an EndpointCollection resolving URLs through
// dialer.
func NewSocket(id SocketId, protocol Protocol, dialer Dialer, logger log.T) *Socket {
	return &Socket{
		Id:        id,
		Protocol:  protocol,
		Endpoints: NewEndpointCollection(dialer),
		Config:    DefaultConfig(),
		log:       logger,
	}
}

// sendDeadline computes the Scheduler.Schedule delay to use for a
// newly parked send, or reports that the request should fail
// immediately with WouldBlock.
func (s *Socket) sendDeadline() (time.Duration, bool) {
	if s.Config.SendTimeout == 0 {
		return 0, false
	}
	if s.Config.SendTimeout < 0 {
		return 0, true
	}
	return s.Config.SendTimeout, true
}

func (s *Socket) recvDeadline() (time.Duration, bool) {
	if s.Config.RecvTimeout == 0 {
		return 0, false
	}
	if s.Config.RecvTimeout < 0 {
		return 0, true
	}
	return s.Config.RecvTimeout, true
}

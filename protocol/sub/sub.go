// Package sub implements the SUB half of the PUB/SUB pattern: a fair
// queue over inbound pipes that silently discards any message not
// matching one of its subscribed topic prefixes and has no send side.
package sub

import (
	"bytes"

	"github.com/npio/scaleproto/core"
	"github.com/npio/scaleproto/core/priolist"
)

// Sub tracks the same single in-flight-fetch/one-buffered-message
// discipline as Pull, but a fetched message that fails the
// subscription filter is dropped and the fair queue immediately tries
// the next ready pipe instead of being handed to the caller.
type Sub struct {
	fq            *priolist.List
	subscriptions [][]byte
	receiving     bool
	receivingEid  core.EndpointId
	buffered      *core.Message
}

// New returns a fresh Sub protocol with no subscriptions, meaning it
// accepts nothing until Subscribe is used.
func New() core.Protocol {
	return &Sub{fq: priolist.New()}
}

func (s *Sub) Type() core.SocketType     { return core.Sub }
func (s *Sub) PeerType() core.SocketType { return core.Pub }

func (s *Sub) AddPipe(ctx core.Context, eid core.EndpointId, pipe core.Pipe) *core.Error {
	s.fq.Insert(uint64(eid), priolist.DefaultPriority)
	return nil
}

func (s *Sub) RemovePipe(ctx core.Context, eid core.EndpointId) {
	s.fq.Remove(uint64(eid))
	if s.receiving && s.receivingEid == eid {
		s.receiving = false
	}
}

func (s *Sub) OnSendReady(ctx core.Context, eid core.EndpointId) {}

func (s *Sub) OnRecvReady(ctx core.Context, eid core.EndpointId) {
	s.fq.Activate(uint64(eid))
	s.pump(ctx)
}

// OnSendNotReady and OnRecvNotReady exist for interface symmetry with
// OnSendReady/OnRecvReady; no transport in this tree raises either one,
// since transports here are completion-based rather than edge-triggered
// poll readiness.
func (s *Sub) OnSendNotReady(ctx core.Context, eid core.EndpointId) {}

func (s *Sub) OnRecvNotReady(ctx core.Context, eid core.EndpointId) {}

func (s *Sub) OnSendAck(ctx core.Context, eid core.EndpointId) {}

func (s *Sub) OnRecvAck(ctx core.Context, eid core.EndpointId, msg core.Message) {
	s.receiving = false
	s.fq.Activate(uint64(eid))

	if !s.accepts(msg.Body) {
		s.pump(ctx)
		return
	}

	s.buffered = &msg
	ctx.Raise(core.CanRecv{Ready: true})
}

func (s *Sub) OnPipeError(ctx core.Context, eid core.EndpointId, err *core.Error) {}

func (s *Sub) Send(ctx core.Context, msg core.Message) *core.Error {
	return core.NewError(core.Other, "send is not supported by the sub protocol")
}

func (s *Sub) Recv(ctx core.Context) (core.Message, *core.Error) {
	if s.buffered == nil {
		s.pump(ctx)
		return core.Message{}, core.NewError(core.WouldBlock, "no message ready")
	}
	msg := *s.buffered
	s.buffered = nil
	ctx.Raise(core.CanRecv{Ready: false})
	s.pump(ctx)
	return msg, nil
}

func (s *Sub) OnTimeout(ctx core.Context, payload core.Schedulable) {}

func (s *Sub) SetOption(opt core.Option) *core.Error {
	switch v := opt.(type) {
	case core.Subscribe:
		s.subscriptions = append(s.subscriptions, append([]byte(nil), v...))
		return nil
	case core.Unsubscribe:
		for i, sub := range s.subscriptions {
			if bytes.Equal(sub, v) {
				s.subscriptions = append(s.subscriptions[:i], s.subscriptions[i+1:]...)
				return nil
			}
		}
		return core.NewError(core.InvalidInput, "not subscribed to %q", v)
	default:
		return core.NewError(core.InvalidInput, "unsupported option for the sub protocol")
	}
}

func (s *Sub) GetOption(name string) (interface{}, *core.Error) {
	return nil, core.NewError(core.InvalidInput, "unknown option %q", name)
}

func (s *Sub) Close(ctx core.Context) {}

func (s *Sub) accepts(body []byte) bool {
	if len(s.subscriptions) == 0 {
		return false
	}
	for _, sub := range s.subscriptions {
		if bytes.HasPrefix(body, sub) {
			return true
		}
	}
	return false
}

func (s *Sub) pump(ctx core.Context) {
	if s.receiving || s.buffered != nil {
		return
	}
	eid, ok := s.fq.Pop()
	if !ok {
		return
	}
	s.receiving = true
	s.receivingEid = core.EndpointId(eid)
	if err := ctx.RecvFrom(core.EndpointId(eid)); err != nil {
		s.receiving = false
	}
}

// Package pull implements the PULL half of the PUSH/PULL pattern: a
// one-way fair queue that reads from every ready inbound pipe in turn
// and has no send side at all.
package pull

import (
	"github.com/npio/scaleproto/core"
	"github.com/npio/scaleproto/core/priolist"
)

// Pull keeps at most one fetch in flight against the transport at a
// time and at most one fetched message buffered for the next Recv
// call to claim. The fair queue only needs to remember which pipes
// are currently readable; it does not need to track per-pipe buffered
// data since a pipe is re-activated only once its current fetch has
// been consumed.
type Pull struct {
	fq           *priolist.List
	receiving    bool
	receivingEid core.EndpointId
	buffered     *core.Message
}

// New returns a fresh Pull protocol.
func New() core.Protocol {
	return &Pull{fq: priolist.New()}
}

func (p *Pull) Type() core.SocketType     { return core.Pull }
func (p *Pull) PeerType() core.SocketType { return core.Push }

func (p *Pull) AddPipe(ctx core.Context, eid core.EndpointId, pipe core.Pipe) *core.Error {
	p.fq.Insert(uint64(eid), priolist.DefaultPriority)
	return nil
}

func (p *Pull) RemovePipe(ctx core.Context, eid core.EndpointId) {
	p.fq.Remove(uint64(eid))
	if p.receiving && p.receivingEid == eid {
		p.receiving = false
	}
}

func (p *Pull) OnSendReady(ctx core.Context, eid core.EndpointId) {}

func (p *Pull) OnRecvReady(ctx core.Context, eid core.EndpointId) {
	p.fq.Activate(uint64(eid))
	p.pump(ctx)
}

// OnSendNotReady and OnRecvNotReady exist for interface symmetry with
// OnSendReady/OnRecvReady; no transport in this tree raises either one,
// since transports here are completion-based rather than edge-triggered
// poll readiness.
func (p *Pull) OnSendNotReady(ctx core.Context, eid core.EndpointId) {}

func (p *Pull) OnRecvNotReady(ctx core.Context, eid core.EndpointId) {}

func (p *Pull) OnSendAck(ctx core.Context, eid core.EndpointId) {}

func (p *Pull) OnRecvAck(ctx core.Context, eid core.EndpointId, msg core.Message) {
	p.receiving = false
	p.buffered = &msg
	p.fq.Activate(uint64(eid))
	ctx.Raise(core.CanRecv{Ready: true})
}

func (p *Pull) OnPipeError(ctx core.Context, eid core.EndpointId, err *core.Error) {}

func (p *Pull) Send(ctx core.Context, msg core.Message) *core.Error {
	return core.NewError(core.Other, "send is not supported by the pull protocol")
}

func (p *Pull) Recv(ctx core.Context) (core.Message, *core.Error) {
	if p.buffered == nil {
		p.pump(ctx)
		return core.Message{}, core.NewError(core.WouldBlock, "no message ready")
	}
	msg := *p.buffered
	p.buffered = nil
	ctx.Raise(core.CanRecv{Ready: false})
	p.pump(ctx)
	return msg, nil
}

func (p *Pull) OnTimeout(ctx core.Context, payload core.Schedulable) {}

func (p *Pull) SetOption(opt core.Option) *core.Error {
	return core.NewError(core.InvalidInput, "pull protocol has no options of its own")
}

func (p *Pull) GetOption(name string) (interface{}, *core.Error) {
	return nil, core.NewError(core.InvalidInput, "unknown option %q", name)
}

func (p *Pull) Close(ctx core.Context) {}

// pump starts the next fetch if one isn't already in flight, nothing
// is buffered, and a readable pipe is available.
func (p *Pull) pump(ctx core.Context) {
	if p.receiving || p.buffered != nil {
		return
	}
	eid, ok := p.fq.Pop()
	if !ok {
		return
	}
	p.receiving = true
	p.receivingEid = core.EndpointId(eid)
	if err := ctx.RecvFrom(core.EndpointId(eid)); err != nil {
		p.receiving = false
	}
}

// Package pub implements the PUB half of the PUB/SUB pattern: every
// sent message is fanned out to every pipe currently writable, and
// publishing never blocks on a slow subscriber.
package pub

import (
	"github.com/npio/scaleproto/core"
)

// Pub maintains a broadcast set of endpoints currently writable. Send
// fans out to every member and drains the set: a pipe only rejoins it
// once it re-announces readiness, via OnSendReady the first time or
// OnSendAck once its previous write completes.
type Pub struct {
	writable map[core.EndpointId]struct{}
}

// New returns a fresh Pub protocol.
func New() core.Protocol {
	return &Pub{writable: make(map[core.EndpointId]struct{})}
}

func (p *Pub) Type() core.SocketType     { return core.Pub }
func (p *Pub) PeerType() core.SocketType { return core.Sub }

func (p *Pub) AddPipe(ctx core.Context, eid core.EndpointId, pipe core.Pipe) *core.Error {
	return nil
}

func (p *Pub) RemovePipe(ctx core.Context, eid core.EndpointId) {
	delete(p.writable, eid)
}

func (p *Pub) OnSendReady(ctx core.Context, eid core.EndpointId) {
	p.writable[eid] = struct{}{}
}

func (p *Pub) OnRecvReady(ctx core.Context, eid core.EndpointId) {}

// OnSendNotReady and OnRecvNotReady exist for interface symmetry with
// OnSendReady/OnRecvReady; no transport in this tree raises either one,
// since transports here are completion-based rather than edge-triggered
// poll readiness.
func (p *Pub) OnSendNotReady(ctx core.Context, eid core.EndpointId) {}

func (p *Pub) OnRecvNotReady(ctx core.Context, eid core.EndpointId) {}

func (p *Pub) OnSendAck(ctx core.Context, eid core.EndpointId) {
	p.writable[eid] = struct{}{}
}

func (p *Pub) OnRecvAck(ctx core.Context, eid core.EndpointId, msg core.Message) {}
func (p *Pub) OnPipeError(ctx core.Context, eid core.EndpointId, err *core.Error) {}

// Send fans msg out to every pipe in the writable set via a
// SharedMessage so the payload is not copied per peer, then drains the
// set: each pipe must re-announce readiness before it receives the
// next one. Send always succeeds, even if the set was empty.
func (p *Pub) Send(ctx core.Context, msg core.Message) *core.Error {
	shared := core.Share(msg)
	for eid := range p.writable {
		ctx.SendTo(eid, shared.Message())
	}
	p.writable = make(map[core.EndpointId]struct{})
	return nil
}

func (p *Pub) Recv(ctx core.Context) (core.Message, *core.Error) {
	return core.Message{}, core.NewError(core.Other, "recv is not supported by the pub protocol")
}

func (p *Pub) OnTimeout(ctx core.Context, payload core.Schedulable) {}

func (p *Pub) SetOption(opt core.Option) *core.Error {
	return core.NewError(core.InvalidInput, "pub protocol has no options of its own")
}

func (p *Pub) GetOption(name string) (interface{}, *core.Error) {
	return nil, core.NewError(core.InvalidInput, "unknown option %q", name)
}

func (p *Pub) Close(ctx core.Context) {}

// Package push implements the PUSH half of the PUSH/PULL pattern: a
// one-way load balancer that round-robins sends across every ready
// outbound pipe and has no receive side at all.
package push

import (
	"github.com/npio/scaleproto/core"
	"github.com/npio/scaleproto/core/priolist"
)

// Push is stateless beyond its load-balancing priolist: there is no
// pending-send state to track because the dispatcher itself parks a
// Send call that finds no ready pipe and retries it on the next
// CanSend event, so the protocol only ever needs to answer "is a pipe
// ready right now".
type Push struct {
	lb *priolist.List
}

// New returns a fresh Push protocol.
func New() core.Protocol {
	return &Push{lb: priolist.New()}
}

func (p *Push) Type() core.SocketType     { return core.Push }
func (p *Push) PeerType() core.SocketType { return core.Pull }

func (p *Push) AddPipe(ctx core.Context, eid core.EndpointId, pipe core.Pipe) *core.Error {
	p.lb.Insert(uint64(eid), priolist.DefaultPriority)
	return nil
}

func (p *Push) RemovePipe(ctx core.Context, eid core.EndpointId) {
	wasReady := p.lb.Peek()
	p.lb.Remove(uint64(eid))
	p.raiseSendChange(ctx, wasReady)
}

func (p *Push) OnSendReady(ctx core.Context, eid core.EndpointId) {
	wasReady := p.lb.Peek()
	p.lb.Activate(uint64(eid))
	p.raiseSendChange(ctx, wasReady)
}

func (p *Push) OnRecvReady(ctx core.Context, eid core.EndpointId) {}

// OnSendNotReady and OnRecvNotReady exist for interface symmetry with
// OnSendReady/OnRecvReady; no transport in this tree raises either one,
// since transports here are completion-based rather than edge-triggered
// poll readiness.
func (p *Push) OnSendNotReady(ctx core.Context, eid core.EndpointId) {}

func (p *Push) OnRecvNotReady(ctx core.Context, eid core.EndpointId) {}

// OnSendAck reactivates the pipe the just-completed send used: Send's
// Pop deactivates whichever pipe it picked, and OnSendReady alone only
// ever fires once at pipe creation, so without this a pipe could send
// at most one message ever.
func (p *Push) OnSendAck(ctx core.Context, eid core.EndpointId) {
	wasReady := p.lb.Peek()
	p.lb.Activate(uint64(eid))
	p.raiseSendChange(ctx, wasReady)
}

func (p *Push) OnRecvAck(ctx core.Context, eid core.EndpointId, msg core.Message) {}

func (p *Push) OnPipeError(ctx core.Context, eid core.EndpointId, err *core.Error) {}

func (p *Push) Send(ctx core.Context, msg core.Message) *core.Error {
	eid, ok := p.lb.Pop()
	if !ok {
		return core.NewError(core.WouldBlock, "no ready pipe")
	}

	if err := ctx.SendTo(core.EndpointId(eid), msg); err != nil {
		return err
	}

	if !p.lb.Peek() {
		ctx.Raise(core.CanSend{Ready: false})
	}
	return nil
}

func (p *Push) Recv(ctx core.Context) (core.Message, *core.Error) {
	return core.Message{}, core.NewError(core.Other, "recv is not supported by the push protocol")
}

func (p *Push) OnTimeout(ctx core.Context, payload core.Schedulable) {}

func (p *Push) SetOption(opt core.Option) *core.Error {
	return core.NewError(core.InvalidInput, "push protocol has no options of its own")
}

func (p *Push) GetOption(name string) (interface{}, *core.Error) {
	return nil, core.NewError(core.InvalidInput, "unknown option %q", name)
}

func (p *Push) Close(ctx core.Context) {}

func (p *Push) raiseSendChange(ctx core.Context, wasReady bool) {
	if isReady := p.lb.Peek(); isReady != wasReady {
		ctx.Raise(core.CanSend{Ready: isReady})
	}
}

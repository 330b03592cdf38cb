// Package pairprefetch implements the PAIR pattern's prefetching
// variant: same single-peer exclusivity as protocol/pair, but it keeps
// one message fetched ahead of the caller. A Recv that finds a
// prefetched message returns it immediately and restarts the fetch in
// the background rather than waiting for the next explicit Recv call.
package pairprefetch

import "github.com/npio/scaleproto/core"

type PairPrefetch struct {
	eid       core.EndpointId
	hasPipe   bool
	sendReady bool
	receiving bool
	prefetch  *core.Message
}

// New returns a fresh PairPrefetch protocol.
func New() core.Protocol {
	return &PairPrefetch{}
}

func (p *PairPrefetch) Type() core.SocketType     { return core.PairPrefetch }
func (p *PairPrefetch) PeerType() core.SocketType { return core.PairPrefetch }

func (p *PairPrefetch) AddPipe(ctx core.Context, eid core.EndpointId, pipe core.Pipe) *core.Error {
	if p.hasPipe {
		ctx.CloseEndpoint(eid)
		return nil
	}
	p.eid = eid
	p.hasPipe = true
	return nil
}

func (p *PairPrefetch) RemovePipe(ctx core.Context, eid core.EndpointId) {
	if !p.hasPipe || p.eid != eid {
		return
	}
	p.hasPipe = false
	wasSendReady := p.sendReady
	p.sendReady = false
	p.receiving = false
	hadPrefetch := p.prefetch != nil
	p.prefetch = nil

	if wasSendReady {
		ctx.Raise(core.CanSend{Ready: false})
	}
	if hadPrefetch {
		ctx.Raise(core.CanRecv{Ready: false})
	}
}

func (p *PairPrefetch) OnSendReady(ctx core.Context, eid core.EndpointId) {
	if p.hasPipe && p.eid == eid && !p.sendReady {
		p.sendReady = true
		ctx.Raise(core.CanSend{Ready: true})
	}
}

func (p *PairPrefetch) OnRecvReady(ctx core.Context, eid core.EndpointId) {
	if p.hasPipe && p.eid == eid {
		p.pump(ctx)
	}
}

// OnSendNotReady and OnRecvNotReady exist for interface symmetry with
// OnSendReady/OnRecvReady; no transport in this tree raises either one,
// since transports here are completion-based rather than edge-triggered
// poll readiness.
func (p *PairPrefetch) OnSendNotReady(ctx core.Context, eid core.EndpointId) {}

func (p *PairPrefetch) OnRecvNotReady(ctx core.Context, eid core.EndpointId) {}

// OnSendAck reactivates send-readiness once the just-issued send
// completes: OnSendReady only ever fires once, at pipe creation, so
// without this a pipe could send at most one message ever.
func (p *PairPrefetch) OnSendAck(ctx core.Context, eid core.EndpointId) {
	if p.hasPipe && p.eid == eid && !p.sendReady {
		p.sendReady = true
		ctx.Raise(core.CanSend{Ready: true})
	}
}

func (p *PairPrefetch) OnRecvAck(ctx core.Context, eid core.EndpointId, msg core.Message) {
	if !p.hasPipe || p.eid != eid {
		return
	}
	p.receiving = false
	wasEmpty := p.prefetch == nil
	p.prefetch = &msg
	if wasEmpty {
		ctx.Raise(core.CanRecv{Ready: true})
	}
}

func (p *PairPrefetch) OnPipeError(ctx core.Context, eid core.EndpointId, err *core.Error) {}

func (p *PairPrefetch) Send(ctx core.Context, msg core.Message) *core.Error {
	if !p.hasPipe || !p.sendReady {
		return core.NewError(core.WouldBlock, "no ready peer")
	}
	if err := ctx.SendTo(p.eid, msg); err != nil {
		return err
	}
	p.sendReady = false
	ctx.Raise(core.CanSend{Ready: false})
	return nil
}

// Recv returns the prefetched message immediately if there is one and
// always restarts the fetch afterward, whether or not it just
// delivered one, so a message is kept fetched ahead of the caller
// whenever the pipe is idle.
func (p *PairPrefetch) Recv(ctx core.Context) (core.Message, *core.Error) {
	if p.prefetch == nil {
		p.pump(ctx)
		return core.Message{}, core.NewError(core.WouldBlock, "no message ready")
	}
	msg := *p.prefetch
	p.prefetch = nil
	ctx.Raise(core.CanRecv{Ready: false})
	p.pump(ctx)
	return msg, nil
}

func (p *PairPrefetch) OnTimeout(ctx core.Context, payload core.Schedulable) {}

func (p *PairPrefetch) SetOption(opt core.Option) *core.Error {
	return core.NewError(core.InvalidInput, "pair-prefetch protocol has no options of its own")
}

func (p *PairPrefetch) GetOption(name string) (interface{}, *core.Error) {
	return nil, core.NewError(core.InvalidInput, "unknown option %q", name)
}

func (p *PairPrefetch) Close(ctx core.Context) {}

func (p *PairPrefetch) pump(ctx core.Context) {
	if p.receiving || p.prefetch != nil || !p.hasPipe {
		return
	}
	p.receiving = true
	if err := ctx.RecvFrom(p.eid); err != nil {
		p.receiving = false
	}
}

// Package pair implements the conservative PAIR pattern: a socket
// that talks to exactly one peer at a time, fetching the next message
// only once Recv is actually called. A second pipe connecting while
// one is already active is closed immediately rather than queued
// behind it. See protocol/pairprefetch for the variant that keeps one
// message fetched ahead of the caller.
package pair

import "github.com/npio/scaleproto/core"

// Pair's entire state is which single pipe it currently has, if any,
// and that pipe's send/recv readiness.
type Pair struct {
	eid       core.EndpointId
	hasPipe   bool
	sendReady bool
	receiving bool
	buffered  *core.Message
}

// New returns a fresh Pair protocol.
func New() core.Protocol {
	return &Pair{}
}

func (p *Pair) Type() core.SocketType     { return core.Pair }
func (p *Pair) PeerType() core.SocketType { return core.Pair }

func (p *Pair) AddPipe(ctx core.Context, eid core.EndpointId, pipe core.Pipe) *core.Error {
	if p.hasPipe {
		ctx.CloseEndpoint(eid)
		return nil
	}
	p.eid = eid
	p.hasPipe = true
	return nil
}

func (p *Pair) RemovePipe(ctx core.Context, eid core.EndpointId) {
	if !p.hasPipe || p.eid != eid {
		return
	}
	p.hasPipe = false
	wasSendReady := p.sendReady
	p.sendReady = false
	p.receiving = false
	hadBuffered := p.buffered != nil
	p.buffered = nil

	if wasSendReady {
		ctx.Raise(core.CanSend{Ready: false})
	}
	if hadBuffered {
		ctx.Raise(core.CanRecv{Ready: false})
	}
}

func (p *Pair) OnSendReady(ctx core.Context, eid core.EndpointId) {
	if p.hasPipe && p.eid == eid && !p.sendReady {
		p.sendReady = true
		ctx.Raise(core.CanSend{Ready: true})
	}
}

// OnRecvReady kicks off the one fetch the connecting pipe makes
// available, same as pump does for a Recv call that found nothing
// buffered. It does not raise CanRecv itself; only an actual arriving
// message (OnRecvAck) does that.
func (p *Pair) OnRecvReady(ctx core.Context, eid core.EndpointId) {
	if p.hasPipe && p.eid == eid {
		p.pump(ctx)
	}
}

// OnSendNotReady and OnRecvNotReady exist for interface symmetry with
// OnSendReady/OnRecvReady; no transport in this tree raises either one,
// since transports here are completion-based rather than edge-triggered
// poll readiness.
func (p *Pair) OnSendNotReady(ctx core.Context, eid core.EndpointId) {}

func (p *Pair) OnRecvNotReady(ctx core.Context, eid core.EndpointId) {}

// OnSendAck reactivates send-readiness once the just-issued send
// completes: OnSendReady only ever fires once, at pipe creation, so
// without this a pipe could send at most one message ever.
func (p *Pair) OnSendAck(ctx core.Context, eid core.EndpointId) {
	if p.hasPipe && p.eid == eid && !p.sendReady {
		p.sendReady = true
		ctx.Raise(core.CanSend{Ready: true})
	}
}

// OnRecvAck buffers the one fetch Recv itself kicked off. Unlike
// pairprefetch, nothing here re-arms the next fetch: that only happens
// the next time Recv is actually called and finds nothing buffered.
func (p *Pair) OnRecvAck(ctx core.Context, eid core.EndpointId, msg core.Message) {
	if !p.hasPipe || p.eid != eid {
		return
	}
	p.receiving = false
	p.buffered = &msg
	ctx.Raise(core.CanRecv{Ready: true})
}

func (p *Pair) OnPipeError(ctx core.Context, eid core.EndpointId, err *core.Error) {}

func (p *Pair) Send(ctx core.Context, msg core.Message) *core.Error {
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

func (p *Pair) Recv(ctx core.Context) (core.Message, *core.Error) {
	if p.buffered == nil {
		p.pump(ctx)
		return core.Message{}, core.NewError(core.WouldBlock, "no message ready")
	}
	msg := *p.buffered
	p.buffered = nil
	ctx.Raise(core.CanRecv{Ready: false})
	return msg, nil
}

func (p *Pair) OnTimeout(ctx core.Context, payload core.Schedulable) {}

func (p *Pair) SetOption(opt core.Option) *core.Error {
	return core.NewError(core.InvalidInput, "pair protocol has no options of its own")
}

func (p *Pair) GetOption(name string) (interface{}, *core.Error) {
	return nil, core.NewError(core.InvalidInput, "unknown option %q", name)
}

func (p *Pair) Close(ctx core.Context) {}

func (p *Pair) pump(ctx core.Context) {
	if p.receiving || p.buffered != nil || !p.hasPipe {
		return
	}
	p.receiving = true
	if err := ctx.RecvFrom(p.eid); err != nil {
		p.receiving = false
	}
}

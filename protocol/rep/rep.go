// Package rep implements the REP half of the REQ/REP pattern: a fair
// queue over inbound pipes that decodes each request's backtrace,
// buffers the payload for Recv, and on Send re-encodes the reply with
// that same backtrace so it retraces the exact path the request came
// in on, including through any chain of forwarding devices.
package rep

import (
	"github.com/npio/scaleproto/core"
	"github.com/npio/scaleproto/core/priolist"
)

// maxHops bounds how many forwarding hops a backtrace can encode,
// matching the REQ/REP wire format's fixed TTL.
const maxHops = 8

// Rep holds at most one request "in hand" at a time: the backtrace it
// arrived with, which Send uses to address the reply back down the
// same path.
type Rep struct {
	fq           *priolist.List
	receiving    bool
	receivingEid core.EndpointId
	buffered     *pendingRequest
	active       *pendingRequest
	deviceMode   bool
}

type pendingRequest struct {
	eid       core.EndpointId
	backtrace []byte
	body      []byte
}

// New returns a fresh Rep protocol. In device mode, Rep stays active
// after a successful Send instead of requiring a fresh Recv, so a
// chain of devices can keep forwarding replies without the facade
// re-issuing Recv between each hop.
func New(deviceMode bool) core.Protocol {
	return &Rep{fq: priolist.New(), deviceMode: deviceMode}
}

func (r *Rep) Type() core.SocketType     { return core.Rep }
func (r *Rep) PeerType() core.SocketType { return core.Req }

func (r *Rep) DeviceMode() bool { return r.deviceMode }

func (r *Rep) AddPipe(ctx core.Context, eid core.EndpointId, pipe core.Pipe) *core.Error {
	r.fq.Insert(uint64(eid), priolist.DefaultPriority)
	return nil
}

func (r *Rep) RemovePipe(ctx core.Context, eid core.EndpointId) {
	r.fq.Remove(uint64(eid))
	if r.receiving && r.receivingEid == eid {
		r.receiving = false
	}
}

func (r *Rep) OnSendReady(ctx core.Context, eid core.EndpointId) {}

func (r *Rep) OnRecvReady(ctx core.Context, eid core.EndpointId) {
	r.fq.Activate(uint64(eid))
	r.pump(ctx)
}

// OnSendNotReady and OnRecvNotReady exist for interface symmetry with
// OnSendReady/OnRecvReady; no transport in this tree raises either one,
// since transports here are completion-based rather than edge-triggered
// poll readiness.
func (r *Rep) OnSendNotReady(ctx core.Context, eid core.EndpointId) {}

func (r *Rep) OnRecvNotReady(ctx core.Context, eid core.EndpointId) {}

func (r *Rep) OnSendAck(ctx core.Context, eid core.EndpointId) {
	if !r.deviceMode {
		r.active = nil
	}
}

func (r *Rep) OnRecvAck(ctx core.Context, eid core.EndpointId, msg core.Message) {
	r.receiving = false
	r.fq.Activate(uint64(eid))

	backtrace, body, ok := decode(msg)
	if !ok {
		r.pump(ctx)
		return
	}

	r.buffered = &pendingRequest{eid: eid, backtrace: backtrace, body: body}
	ctx.Raise(core.CanRecv{Ready: true})
}

func (r *Rep) OnPipeError(ctx core.Context, eid core.EndpointId, err *core.Error) {}

func (r *Rep) Send(ctx core.Context, msg core.Message) *core.Error {
	if r.active == nil {
		return core.NewError(core.Other, "send called with no request to reply to")
	}
	encoded := encode(msg, r.active.backtrace)
	return ctx.SendTo(r.active.eid, encoded)
}

func (r *Rep) Recv(ctx core.Context) (core.Message, *core.Error) {
	if r.buffered == nil {
		r.pump(ctx)
		return core.Message{}, core.NewError(core.WouldBlock, "no request ready")
	}
	req := r.buffered
	r.buffered = nil
	r.active = req
	ctx.Raise(core.CanRecv{Ready: false})
	r.pump(ctx)
	return core.Message{Body: req.body}, nil
}

func (r *Rep) OnTimeout(ctx core.Context, payload core.Schedulable) {}

func (r *Rep) SetOption(opt core.Option) *core.Error {
	return core.NewError(core.InvalidInput, "rep protocol has no options of its own")
}

func (r *Rep) GetOption(name string) (interface{}, *core.Error) {
	return nil, core.NewError(core.InvalidInput, "unknown option %q", name)
}

func (r *Rep) Close(ctx core.Context) {}

func (r *Rep) pump(ctx core.Context) {
	if r.receiving || r.buffered != nil {
		return
	}
	eid, ok := r.fq.Pop()
	if !ok {
		return
	}
	r.receiving = true
	r.receivingEid = core.EndpointId(eid)
	if err := ctx.RecvFrom(core.EndpointId(eid)); err != nil {
		r.receiving = false
	}
}

// decode peels hop frames off the front of a received message's
// header until it finds one with its terminator bit set, accumulating
// every hop (including the terminator) into the backtrace that a
// reply will be re-encoded with. The body, carrying no framing of its
// own, is returned untouched. It fails closed: a message exceeding
// maxHops without a terminator, or running out of bytes mid-hop, is
// rejected.
func decode(raw core.Message) (backtrace []byte, body []byte, ok bool) {
	rest := raw.Header
	var trace []byte
	for hops := 0; hops < maxHops; hops++ {
		if len(rest) < 4 {
			return nil, nil, false
		}
		frame := rest[:4]
		rest = rest[4:]
		trace = append(trace, frame...)
		if trace[len(trace)-4]&0x80 != 0 {
			return trace, raw.Body, true
		}
	}
	return nil, nil, false
}

// encode appends the backtrace captured by decode to msg's header, so
// the next hop (a transport, or a forwarding device) can strip it back
// off the front of what it writes to the wire.
func encode(msg core.Message, backtrace []byte) core.Message {
	return msg.WithHeaderSuffix(backtrace)
}

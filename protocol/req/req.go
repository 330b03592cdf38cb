// Package req implements the REQ half of the REQ/REP pattern: a
// single outstanding request at a time, load-balanced across ready
// pipes, periodically resent to a different peer until a reply
// carrying its id comes back.
package req

import (
	"encoding/binary"
	"time"

	"github.com/npio/scaleproto/core"
	"github.com/npio/scaleproto/core/priolist"
)

// DefaultResendIvl is how long Req waits for a reply before resending
// the pending request to the next ready peer.
const DefaultResendIvl = 60 * time.Second

// Req tracks at most one outstanding request: the raw payload (so it
// can be resent verbatim with the same id to a different peer), the id
// itself, and whichever reply has arrived for it.
type Req struct {
	lb          *priolist.List
	resendIvl   time.Duration
	idSeq       uint32
	curId       uint32
	pending     core.Message
	hasPending  bool
	resendToken core.Scheduled
	hasResend   bool
	reply       *core.Message
}

// New returns a fresh Req protocol seeded with a request id derived
// from the current time, matching the high-bit-set 31-bit counter the
// wire format reserves for correlating a reply with its request.
func New() core.Protocol {
	return &Req{
		lb:        priolist.New(),
		resendIvl: DefaultResendIvl,
		idSeq:     uint32(time.Now().UnixNano()),
	}
}

func (r *Req) Type() core.SocketType     { return core.Req }
func (r *Req) PeerType() core.SocketType { return core.Rep }

func (r *Req) AddPipe(ctx core.Context, eid core.EndpointId, pipe core.Pipe) *core.Error {
	r.lb.Insert(uint64(eid), priolist.DefaultPriority)
	return nil
}

func (r *Req) RemovePipe(ctx core.Context, eid core.EndpointId) {
	r.lb.Remove(uint64(eid))
}

func (r *Req) OnSendReady(ctx core.Context, eid core.EndpointId) {
	r.lb.Activate(uint64(eid))
	r.flushPending(ctx)
}

// OnRecvReady starts reading replies from eid; OnRecvAck re-arms the
// read after every message, so each pipe always has one read
// outstanding.
func (r *Req) OnRecvReady(ctx core.Context, eid core.EndpointId) {
	ctx.RecvFrom(eid)
}

// OnSendNotReady and OnRecvNotReady exist for interface symmetry with
// OnSendReady/OnRecvReady; no transport in this tree raises either one,
// since transports here are completion-based rather than edge-triggered
// poll readiness.
func (r *Req) OnSendNotReady(ctx core.Context, eid core.EndpointId) {}

func (r *Req) OnRecvNotReady(ctx core.Context, eid core.EndpointId) {}

// OnSendAck reactivates the pipe the just-completed send used, the
// same way OnRecvAck reactivates a fetched-from pipe for pull's fair
// queue: Send's trySend pops (and so deactivates) the pipe it used,
// and OnSendReady alone only ever fires once at pipe creation.
func (r *Req) OnSendAck(ctx core.Context, eid core.EndpointId) {
	r.lb.Activate(uint64(eid))
	r.flushPending(ctx)
}

func (r *Req) OnRecvAck(ctx core.Context, eid core.EndpointId, msg core.Message) {
	ctx.RecvFrom(eid)
	if !r.hasPending {
		return
	}
	id, body, ok := decode(msg)
	if !ok || id != r.curId {
		return
	}

	r.cancelResend(ctx)
	r.hasPending = false
	r.reply = &core.Message{Body: body}
	ctx.Raise(core.CanRecv{Ready: true})
}

func (r *Req) OnPipeError(ctx core.Context, eid core.EndpointId, err *core.Error) {}

// Send cancels any outstanding request and issues a new one, picking
// a fresh id so a stale reply to the previous request cannot be
// mistaken for this one.
func (r *Req) Send(ctx core.Context, msg core.Message) *core.Error {
	r.cancelResend(ctx)
	r.reply = nil

	r.idSeq++
	r.curId = r.idSeq | 0x80000000
	r.pending = encode(msg, r.curId)
	r.hasPending = true

	if !r.trySend(ctx) {
		return core.NewError(core.WouldBlock, "no ready pipe")
	}
	return nil
}

func (r *Req) Recv(ctx core.Context) (core.Message, *core.Error) {
	if r.reply == nil {
		return core.Message{}, core.NewError(core.WouldBlock, "no reply ready")
	}
	msg := *r.reply
	r.reply = nil
	ctx.Raise(core.CanRecv{Ready: false})
	return msg, nil
}

func (r *Req) OnTimeout(ctx core.Context, payload core.Schedulable) {
	if _, ok := payload.(core.ReqResendElapsed); !ok {
		return
	}
	r.hasResend = false
	if !r.hasPending {
		return
	}
	r.trySend(ctx)
}

func (r *Req) SetOption(opt core.Option) *core.Error {
	if v, ok := opt.(core.ReqResendIvl); ok {
		r.resendIvl = time.Duration(v)
		return nil
	}
	return core.NewError(core.InvalidInput, "unsupported option for the req protocol")
}

func (r *Req) GetOption(name string) (interface{}, *core.Error) {
	if name == "req-resend-ivl" {
		return r.resendIvl, nil
	}
	return nil, core.NewError(core.InvalidInput, "unknown option %q", name)
}

func (r *Req) Close(ctx core.Context) {
	r.cancelResend(ctx)
}

// trySend attempts to hand the pending request to a ready pipe and, on
// success, arms the resend timer. It reports whether a pipe accepted
// the request.
func (r *Req) trySend(ctx core.Context) bool {
	eid, ok := r.lb.Pop()
	if !ok {
		return false
	}
	if err := ctx.SendTo(core.EndpointId(eid), r.pending); err != nil {
		return false
	}
	r.resendToken = ctx.Schedule(r.resendIvl, core.ReqResendElapsed{})
	r.hasResend = true
	return true
}

func (r *Req) flushPending(ctx core.Context) {
	if !r.hasPending || r.hasResend {
		return
	}
	r.trySend(ctx)
}

func (r *Req) cancelResend(ctx core.Context) {
	if r.hasResend {
		ctx.Cancel(r.resendToken)
		r.hasResend = false
	}
}

// encode prepends the 4-byte big-endian request id to the header, to
// be transmitted ahead of the payload.
func encode(msg core.Message, id uint32) core.Message {
	var idBytes [4]byte
	binary.BigEndian.PutUint32(idBytes[:], id)
	return msg.WithHeaderPrefix(idBytes[:])
}

// decode reads the request id a reply is answering off the header,
// where encode placed it, leaving the body untouched.
func decode(raw core.Message) (uint32, []byte, bool) {
	if len(raw.Header) < 4 {
		return 0, nil, false
	}
	id := binary.BigEndian.Uint32(raw.Header[:4])
	return id, raw.Body, true
}

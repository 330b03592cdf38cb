// Package respondent implements the RESPONDENT half of the
// SURVEYOR/RESPONDENT pattern: a fair queue over inbound pipes that
// decodes each survey's id, buffers the payload for Recv, and on Send
// re-encodes the reply with that same id so the surveyor can match it
// back to the survey it answers.
package respondent

import (
	"encoding/binary"

	"github.com/npio/scaleproto/core"
	"github.com/npio/scaleproto/core/priolist"
)

// Respondent mirrors Rep's shape but frames with a single 4-byte
// survey id instead of a backtrace, since a survey answer only ever
// retraces one hop back to the surveyor that broadcast it.
type Respondent struct {
	fq           *priolist.List
	receiving    bool
	receivingEid core.EndpointId
	buffered     *pendingSurvey
	active       *pendingSurvey
	deviceMode   bool
}

type pendingSurvey struct {
	eid  core.EndpointId
	id   uint32
	body []byte
}

// New returns a fresh Respondent protocol.
func New(deviceMode bool) core.Protocol {
	return &Respondent{fq: priolist.New(), deviceMode: deviceMode}
}

func (r *Respondent) Type() core.SocketType     { return core.Respondent }
func (r *Respondent) PeerType() core.SocketType { return core.Surveyor }

func (r *Respondent) DeviceMode() bool { return r.deviceMode }

func (r *Respondent) AddPipe(ctx core.Context, eid core.EndpointId, pipe core.Pipe) *core.Error {
	r.fq.Insert(uint64(eid), priolist.DefaultPriority)
	return nil
}

func (r *Respondent) RemovePipe(ctx core.Context, eid core.EndpointId) {
	r.fq.Remove(uint64(eid))
	if r.receiving && r.receivingEid == eid {
		r.receiving = false
	}
}

func (r *Respondent) OnSendReady(ctx core.Context, eid core.EndpointId) {}

func (r *Respondent) OnRecvReady(ctx core.Context, eid core.EndpointId) {
	r.fq.Activate(uint64(eid))
	r.pump(ctx)
}

// OnSendNotReady and OnRecvNotReady exist for interface symmetry with
// OnSendReady/OnRecvReady; no transport in this tree raises either one,
// since transports here are completion-based rather than edge-triggered
// poll readiness.
func (r *Respondent) OnSendNotReady(ctx core.Context, eid core.EndpointId) {}

func (r *Respondent) OnRecvNotReady(ctx core.Context, eid core.EndpointId) {}

func (r *Respondent) OnSendAck(ctx core.Context, eid core.EndpointId) {
	if !r.deviceMode {
		r.active = nil
	}
}

func (r *Respondent) OnRecvAck(ctx core.Context, eid core.EndpointId, msg core.Message) {
	r.receiving = false
	r.fq.Activate(uint64(eid))

	id, body, ok := decode(msg)
	if !ok {
		r.pump(ctx)
		return
	}

	r.buffered = &pendingSurvey{eid: eid, id: id, body: body}
	ctx.Raise(core.CanRecv{Ready: true})
}

func (r *Respondent) OnPipeError(ctx core.Context, eid core.EndpointId, err *core.Error) {}

func (r *Respondent) Send(ctx core.Context, msg core.Message) *core.Error {
	if r.active == nil {
		return core.NewError(core.Other, "send called with no survey to answer")
	}
	return ctx.SendTo(r.active.eid, encode(msg, r.active.id))
}

func (r *Respondent) Recv(ctx core.Context) (core.Message, *core.Error) {
	if r.buffered == nil {
		r.pump(ctx)
		return core.Message{}, core.NewError(core.WouldBlock, "no survey ready")
	}
	s := r.buffered
	r.buffered = nil
	r.active = s
	ctx.Raise(core.CanRecv{Ready: false})
	r.pump(ctx)
	return core.Message{Body: s.body}, nil
}

func (r *Respondent) OnTimeout(ctx core.Context, payload core.Schedulable) {}

func (r *Respondent) SetOption(opt core.Option) *core.Error {
	return core.NewError(core.InvalidInput, "respondent protocol has no options of its own")
}

func (r *Respondent) GetOption(name string) (interface{}, *core.Error) {
	return nil, core.NewError(core.InvalidInput, "unknown option %q", name)
}

func (r *Respondent) Close(ctx core.Context) {}

func (r *Respondent) pump(ctx core.Context) {
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

func encode(msg core.Message, id uint32) core.Message {
	var idBytes [4]byte
	binary.BigEndian.PutUint32(idBytes[:], id)
	return msg.WithHeaderPrefix(idBytes[:])
}

// decode reads the survey id off the header, where encode placed it,
// leaving the body untouched.
func decode(raw core.Message) (uint32, []byte, bool) {
	if len(raw.Header) < 4 {
		return 0, nil, false
	}
	return binary.BigEndian.Uint32(raw.Header[:4]), raw.Body, true
}

// Package bus implements the BUS pattern: every socket in the mesh
// broadcasts each sent message to every pipe except, when relaying a
// message it itself received, the pipe it came from.
package bus

import (
	"encoding/binary"

	"github.com/npio/scaleproto/core"
	"github.com/npio/scaleproto/core/priolist"
)

// Bus has no pending-send state: a send either reaches every
// currently-connected pipe or it doesn't, synchronously, so there is
// nothing to retry later. The fair queue only governs the receive
// side.
type Bus struct {
	bc           map[core.EndpointId]struct{}
	fq           *priolist.List
	receiving    bool
	receivingEid core.EndpointId
	buffered     *core.Message
}

// New returns a fresh Bus protocol.
func New() core.Protocol {
	return &Bus{bc: make(map[core.EndpointId]struct{}), fq: priolist.New()}
}

func (b *Bus) Type() core.SocketType     { return core.BusSocket }
func (b *Bus) PeerType() core.SocketType { return core.BusSocket }

func (b *Bus) AddPipe(ctx core.Context, eid core.EndpointId, pipe core.Pipe) *core.Error {
	b.bc[eid] = struct{}{}
	b.fq.Insert(uint64(eid), priolist.DefaultPriority)
	return nil
}

func (b *Bus) RemovePipe(ctx core.Context, eid core.EndpointId) {
	delete(b.bc, eid)
	b.fq.Remove(uint64(eid))
	if b.receiving && b.receivingEid == eid {
		b.receiving = false
	}
}

func (b *Bus) OnSendReady(ctx core.Context, eid core.EndpointId) {}

func (b *Bus) OnRecvReady(ctx core.Context, eid core.EndpointId) {
	b.fq.Activate(uint64(eid))
	b.pump(ctx)
}

// OnSendNotReady and OnRecvNotReady exist for interface symmetry with
// OnSendReady/OnRecvReady; no transport in this tree raises either one,
// since transports here are completion-based rather than edge-triggered
// poll readiness.
func (b *Bus) OnSendNotReady(ctx core.Context, eid core.EndpointId) {}

func (b *Bus) OnRecvNotReady(ctx core.Context, eid core.EndpointId) {}

func (b *Bus) OnSendAck(ctx core.Context, eid core.EndpointId) {}

func (b *Bus) OnRecvAck(ctx core.Context, eid core.EndpointId, msg core.Message) {
	b.receiving = false
	b.fq.Activate(uint64(eid))

	decoded := decode(msg, eid)
	b.buffered = &decoded
	ctx.Raise(core.CanRecv{Ready: true})
}

func (b *Bus) OnPipeError(ctx core.Context, eid core.EndpointId, err *core.Error) {}

// Send fans msg out to every connected pipe. If msg carries an
// originator prefix in its header (set by decode on a message this
// socket is relaying, device-style) that pipe is skipped so the
// message does not echo straight back to where it came from.
func (b *Bus) Send(ctx core.Context, msg core.Message) *core.Error {
	outgoing, exclude := encode(msg)
	for eid := range b.bc {
		if exclude != nil && eid == *exclude {
			continue
		}
		ctx.SendTo(eid, outgoing)
	}
	return nil
}

func (b *Bus) Recv(ctx core.Context) (core.Message, *core.Error) {
	if b.buffered == nil {
		b.pump(ctx)
		return core.Message{}, core.NewError(core.WouldBlock, "no message ready")
	}
	msg := *b.buffered
	b.buffered = nil
	ctx.Raise(core.CanRecv{Ready: false})
	b.pump(ctx)
	return msg, nil
}

func (b *Bus) OnTimeout(ctx core.Context, payload core.Schedulable) {}

func (b *Bus) SetOption(opt core.Option) *core.Error {
	return core.NewError(core.InvalidInput, "bus protocol has no options of its own")
}

func (b *Bus) GetOption(name string) (interface{}, *core.Error) {
	return nil, core.NewError(core.InvalidInput, "unknown option %q", name)
}

func (b *Bus) Close(ctx core.Context) {}

func (b *Bus) pump(ctx core.Context) {
	if b.receiving || b.buffered != nil {
		return
	}
	eid, ok := b.fq.Pop()
	if !ok {
		return
	}
	b.receiving = true
	b.receivingEid = core.EndpointId(eid)
	if err := ctx.RecvFrom(core.EndpointId(eid)); err != nil {
		b.receiving = false
	}
}

// decode tags a received message with the pipe it arrived on, so a
// later Send relaying it can exclude that pipe from the rebroadcast.
func decode(raw core.Message, eid core.EndpointId) core.Message {
	var idBytes [4]byte
	binary.BigEndian.PutUint32(idBytes[:], uint32(eid))
	return core.Message{Header: idBytes[:], Body: raw.Body}
}

// encode strips a decode-applied originator prefix off msg's header,
// if present, and reports the endpoint it names so Send can exclude
// it.
func encode(msg core.Message) (core.Message, *core.EndpointId) {
	if len(msg.Header) < 4 {
		return msg, nil
	}
	origin := core.EndpointId(binary.BigEndian.Uint32(msg.Header[:4]))
	return core.Message{Header: msg.Header[4:], Body: msg.Body}, &origin
}

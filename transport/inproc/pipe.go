package inproc

import "github.com/npio/scaleproto/core"

// Pipe is one end of an inproc connection: its Send writes onto the
// channel the other end reads from, and vice versa. Completion of
// both Send and Recv is reported asynchronously via the owning
// socket's bus, same as every other transport, even though the
// underlying channel send/receive could often complete synchronously.
type Pipe struct {
	id     core.EndpointId
	socket core.SocketId
	bus    *core.Bus
	out    chan core.Message
	in     chan core.Message
	closed chan struct{}
}

func newPipePair(eid core.EndpointId) (*Pipe, *Pipe) {
	ab := make(chan core.Message, 64)
	ba := make(chan core.Message, 64)
	a := &Pipe{id: eid, out: ab, in: ba, closed: make(chan struct{})}
	b := &Pipe{id: eid, out: ba, in: ab, closed: make(chan struct{})}
	return a, b
}

func (p *Pipe) Id() core.EndpointId { return p.id }

func (p *Pipe) Send(msg core.Message) *core.Error {
	select {
	case <-p.closed:
		return core.NewError(core.NotConnected, "pipe closed")
	default:
	}
	go func() {
		select {
		case p.out <- msg:
			p.bus.Push(core.PipeEvt{SocketId: p.socket, EndpointId: p.id, Kind: core.PipeSent})
		case <-p.closed:
		}
	}()
	return nil
}

func (p *Pipe) Recv() *core.Error {
	select {
	case <-p.closed:
		return core.NewError(core.NotConnected, "pipe closed")
	default:
	}
	go func() {
		select {
		case msg := <-p.in:
			p.bus.Push(core.PipeEvt{SocketId: p.socket, EndpointId: p.id, Kind: core.PipeReceived, Msg: msg})
		case <-p.closed:
		}
	}()
	return nil
}

func (p *Pipe) Close() *core.Error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}

func (p *Pipe) announceReady() {
	p.bus.Push(core.PipeEvt{SocketId: p.socket, EndpointId: p.id, Kind: core.PipeCanSend})
	p.bus.Push(core.PipeEvt{SocketId: p.socket, EndpointId: p.id, Kind: core.PipeCanRecv})
}

package core

// Signal is what a transport goroutine pushes onto the reactor's bus
// to report a pipe or acceptor lifecycle event. The dispatcher is the
// only reader of the bus and routes each signal to the owning socket's
// Protocol.
type Signal interface {
	isSignal()
}

// PipeEvt carries a pipe lifecycle event, grounded on the event set a
// transport pipe can report: it opened, became able or unable to send
// or receive, finished a send or receive it was asked to do, hit an
// error, or closed.
//
// PipeSendNotReady/PipeRecvNotReady exist on the interface for
// symmetry with PipeCanSend/PipeCanRecv, but no transport in this tree
// raises them: transport/inproc, transport/tcp, and transport/ws are
// all completion-based (a pipe announces readiness once, at creation,
// and every subsequent Send/Recv either completes with PipeSent/
// PipeReceived or fails with PipeError) rather than edge-triggered
// poll readiness, so there is never a point at which a pipe transitions
// from ready to transiently not-ready without also erroring or closing.
type PipeEvt struct {
	SocketId   SocketId
	EndpointId EndpointId
	Kind       PipeEvtKind
	Pipe       Pipe
	Msg        Message
	Err        *Error
}

type PipeEvtKind int

const (
	PipeOpened PipeEvtKind = iota
	PipeCanSend
	PipeSendNotReady
	PipeSent
	PipeCanRecv
	PipeRecvNotReady
	PipeReceived
	PipeError
	PipeClosed
)

func (PipeEvt) isSignal() {}

// AcceptorEvt reports a listener producing a freshly accepted pipe.
type AcceptorEvt struct {
	SocketId   SocketId
	EndpointId EndpointId
	Accepted   Pipe
	Err        *Error
}

func (AcceptorEvt) isSignal() {}

// Bus is the dispatcher's internal signal channel. Any goroutine
// (transport readers/writers, acceptors) may push to it; only the
// dispatcher's own goroutine ever drains it.
type Bus struct {
	ch chan Signal
}

// NewBus returns a Bus with the given buffer depth.
func NewBus(depth int) *Bus {
	return &Bus{ch: make(chan Signal, depth)}
}

func (b *Bus) Push(s Signal) {
	b.ch <- s
}

func (b *Bus) C() <-chan Signal {
	return b.ch
}

// Package core implements the reactor: a single-threaded event loop
// that owns every socket's protocol state machine and is the only
// thing ever allowed to touch it. Everything else (the façade, a
// transport's read/write goroutines) talks to the reactor only by
// pushing onto a channel, never by calling in directly.
package core

import (
	"github.com/npio/scaleproto/core/timerwheel"
	"github.com/npio/scaleproto/internal/clock"
	"github.com/npio/scaleproto/internal/log"
)

// ProtocolFactory builds a fresh Protocol for a CreateSocket request.
type ProtocolFactory func() Protocol

// DialerFactory builds the Dialer a newly created socket resolves its
// Connect/Bind URLs through. It is handed the socket's id and the
// dispatcher's bus because most transports (inproc, tcp) need both to
// report connection events back as signals scoped to that socket.
type DialerFactory func(SocketId, *Bus) Dialer

// Dispatcher is the reactor loop itself. Build one with New, register
// protocol factories with Register, then run it on its own goroutine
// with Run. Everything below Run executes only on that goroutine.
type Dispatcher struct {
	requests  chan Request
	bus       *Bus
	wheel     *timerwheel.Wheel
	schedule  *Schedule
	session   *Session
	dialerFor DialerFactory
	factories map[SocketType]ProtocolFactory
	deviceFactories map[SocketType]ProtocolFactory
	log       log.T
	stop      chan struct{}
	done      chan struct{}
}

// New returns a Dispatcher with a 512-slot, 10ms timer wheel and a
// 4096-entry request channel. dialerFor builds the transport-facing
// Dialer each newly created socket resolves its Connect/Bind calls
// through.
func New(dialerFor DialerFactory) *Dispatcher {
	wheel := timerwheel.New(0, 0, clock.Default)
	return &Dispatcher{
		requests:  make(chan Request, 4096),
		bus:       NewBus(4096),
		wheel:     wheel,
		schedule:  NewSchedule(wheel),
		session:   NewSession(),
		dialerFor:       dialerFor,
		factories:       make(map[SocketType]ProtocolFactory),
		deviceFactories: make(map[SocketType]ProtocolFactory),
		log:             log.WithContext("dispatcher"),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Register associates a socket type with the factory that builds its
// Protocol. facade.RegisterBuiltins (or a caller registering only the
// patterns it needs) calls this before the dispatcher starts.
func (d *Dispatcher) Register(t SocketType, factory ProtocolFactory) {
	d.factories[t] = factory
}

// RegisterDevice associates a socket type with the factory used when a
// CreateSocket request sets Device, for protocols (Rep, Respondent)
// that behave differently as a relay. A type with no device factory
// falls back to its normal one; Device has no effect on it.
func (d *Dispatcher) RegisterDevice(t SocketType, factory ProtocolFactory) {
	d.deviceFactories[t] = factory
}

// Requests returns the channel a façade call pushes a Request onto.
func (d *Dispatcher) Requests() chan Request {
	return d.requests
}

// Bus returns the signal bus a transport pushes PipeEvt/AcceptorEvt
// signals onto.
func (d *Dispatcher) Bus() *Bus {
	return d.bus
}

// Run drives the reactor loop until Stop is called. It is meant to run
// on its own goroutine for the lifetime of the process that created
// the Dispatcher.
func (d *Dispatcher) Run() {
	defer close(d.done)

	d.wheel.Start()
	defer d.wheel.Stop()

	for {
		select {
		case <-d.stop:
			d.closeAllSockets()
			return
		case req := <-d.requests:
			d.processRequest(req)
			d.drainRequests()
		case sig := <-d.bus.C():
			d.processSignal(sig)
			d.drainBus()
		case <-d.wheel.C():
			d.wheel.Advance()
			d.processFired()
		}
	}
}

// Stop asks the reactor loop to exit and blocks until it has.
func (d *Dispatcher) Stop() {
	close(d.stop)
	<-d.done
}

func (d *Dispatcher) drainRequests() {
	for {
		select {
		case req := <-d.requests:
			d.processRequest(req)
		default:
			return
		}
	}
}

func (d *Dispatcher) drainBus() {
	for {
		select {
		case sig := <-d.bus.C():
			d.processSignal(sig)
		default:
			return
		}
	}
}

func (d *Dispatcher) processFired() {
	for _, f := range d.schedule.Poll() {
		sock, ok := d.session.Get(f.socketId)
		if !ok {
			continue
		}
		switch f.payload.(type) {
		case SendTimeoutElapsed:
			if parked := sock.pendingSend; parked != nil {
				sock.pendingSend = nil
				parked.reply <- Reply{Err: NewError(TimedOut, "send timed out")}
			}
		case RecvTimeoutElapsed:
			if parked := sock.pendingRecv; parked != nil {
				sock.pendingRecv = nil
				parked.reply <- Reply{Err: NewError(TimedOut, "recv timed out")}
			}
		}
		ctx := newSocketContext(sock.Id, sock.Endpoints, d.schedule)
		sock.Protocol.OnTimeout(ctx, f.payload)
		d.settleParked(sock, ctx)
	}
}

func (d *Dispatcher) closeAllSockets() {
	d.session.Each(func(sock *Socket) {
		ctx := newSocketContext(sock.Id, sock.Endpoints, d.schedule)
		sock.Protocol.Close(ctx)
		sock.Endpoints.CloseAll()
	})
}

// processRequest is the request-channel counterpart of
// process_request/process_channel in the reactor this dispatcher is
// modeled on: CreateSocket is session-scoped, everything else is
// socket-scoped and replies with NotConnected if the socket id is
// stale (the façade closed it while the request was in flight).
func (d *Dispatcher) processRequest(req Request) {
	if create, ok := req.Body.(CreateSocket); ok {
		d.createSocket(create, req.Reply)
		return
	}

	sock, ok := d.session.Get(req.SocketId)
	if !ok {
		req.Reply <- Reply{Err: NewError(NotConnected, "unknown socket %d", req.SocketId)}
		return
	}

	ctx := newSocketContext(sock.Id, sock.Endpoints, d.schedule)

	switch body := req.Body.(type) {
	case ConnectEndpoint:
		eid, err := ctx.Connect(body.URL)
		req.Reply <- Reply{EndpointId: eid, Err: err}
	case BindEndpoint:
		eid, err := ctx.Bind(body.URL)
		req.Reply <- Reply{EndpointId: eid, Err: err}
	case CloseEndpoint:
		err := ctx.CloseEndpoint(body.EndpointId)
		sock.Protocol.RemovePipe(ctx, body.EndpointId)
		req.Reply <- Reply{Err: err}
	case SendMessage:
		d.handleSend(sock, ctx, body.Msg, req.Reply)
	case RecvMessage:
		d.handleRecv(sock, ctx, req.Reply)
	case SetSocketOption:
		req.Reply <- Reply{Err: d.setOption(sock, body.Option)}
	case GetSocketOption:
		v, err := sock.Protocol.GetOption(body.Name)
		req.Reply <- Reply{Value: v, Err: err}
	case CloseSocket:
		sock.Protocol.Close(ctx)
		sock.Endpoints.CloseAll()
		d.session.Remove(sock.Id)
		req.Reply <- Reply{}
	default:
		req.Reply <- Reply{Err: NewError(InvalidInput, "unrecognized request")}
	}

	d.settleParked(sock, ctx)
}

func (d *Dispatcher) createSocket(create CreateSocket, reply chan Reply) {
	factory, ok := d.factories[create.Type]
	if create.Device {
		if deviceFactory, ok2 := d.deviceFactories[create.Type]; ok2 {
			factory, ok = deviceFactory, true
		}
	}
	if !ok {
		reply <- Reply{Err: NewError(InvalidInput, "no protocol registered for %s", create.Type)}
		return
	}
	id := d.session.nextSocketId()
	sock := NewSocket(id, factory(), d.dialerFor(id, d.bus), log.WithContext("socket", create.Type.String()))
	d.session.Add(sock)
	reply <- Reply{SocketId: id}
}

func (d *Dispatcher) setOption(sock *Socket, opt Option) *Error {
	handled, err := sock.Config.Apply(opt)
	if err != nil {
		return err
	}
	if handled {
		return nil
	}
	return sock.Protocol.SetOption(opt)
}

// handleSend attempts an immediate send and parks the request if the
// protocol is not send-ready and the socket's SendTimeout allows
// waiting for it.
func (d *Dispatcher) handleSend(sock *Socket, ctx *socketContext, msg Message, reply chan Reply) {
	err := sock.Protocol.Send(ctx, msg)
	if err == nil {
		reply <- Reply{}
		return
	}
	if err.Kind != WouldBlock {
		reply <- Reply{Err: err}
		return
	}

	delay, shouldWait := sock.sendDeadline()
	if !shouldWait {
		reply <- Reply{Err: err}
		return
	}

	parked := &parkedRequest{reply: reply, msg: msg}
	if delay > 0 {
		parked.deadline = d.schedule.Insert(sock.Id, delay, SendTimeoutElapsed{})
		parked.hasDeadline = true
	}
	sock.pendingSend = parked
}

func (d *Dispatcher) handleRecv(sock *Socket, ctx *socketContext, reply chan Reply) {
	msg, err := sock.Protocol.Recv(ctx)
	if err == nil {
		reply <- Reply{Msg: msg}
		return
	}
	if err.Kind != WouldBlock {
		reply <- Reply{Err: err}
		return
	}

	delay, shouldWait := sock.recvDeadline()
	if !shouldWait {
		reply <- Reply{Err: err}
		return
	}

	parked := &parkedRequest{reply: reply}
	if delay > 0 {
		parked.deadline = d.schedule.Insert(sock.Id, delay, RecvTimeoutElapsed{})
		parked.hasDeadline = true
	}
	sock.pendingRecv = parked
}

// settleParked retries a parked send/recv after a call that may have
// raised CanSend/CanRecv. The timeout cases (a SendTimeoutElapsed/
// RecvTimeoutElapsed firing before the protocol ever became ready) are
// resolved in processFired, which fails the parked request with
// TimedOut.
func (d *Dispatcher) settleParked(sock *Socket, ctx *socketContext) {
	for _, evt := range ctx.events {
		switch e := evt.(type) {
		case CanSend:
			if e.Ready && sock.pendingSend != nil {
				d.retrySend(sock)
			}
		case CanRecv:
			if e.Ready && sock.pendingRecv != nil {
				d.retryRecv(sock)
			}
		}
	}
	ctx.events = nil
}

func (d *Dispatcher) retrySend(sock *Socket) {
	parked := sock.pendingSend
	ctx := newSocketContext(sock.Id, sock.Endpoints, d.schedule)
	err := sock.Protocol.Send(ctx, parked.msg)
	if err != nil && err.Kind == WouldBlock {
		return
	}
	sock.pendingSend = nil
	if parked.hasDeadline {
		d.schedule.Remove(parked.deadline)
	}
	parked.reply <- Reply{Err: err}
	d.settleParked(sock, ctx)
}

func (d *Dispatcher) retryRecv(sock *Socket) {
	parked := sock.pendingRecv
	ctx := newSocketContext(sock.Id, sock.Endpoints, d.schedule)
	msg, err := sock.Protocol.Recv(ctx)
	if err != nil && err.Kind == WouldBlock {
		return
	}
	sock.pendingRecv = nil
	if parked.hasDeadline {
		d.schedule.Remove(parked.deadline)
	}
	parked.reply <- Reply{Msg: msg, Err: err}
	d.settleParked(sock, ctx)
}

// processSignal is the bus-channel counterpart of process_bus: every
// PipeEvt/AcceptorEvt is routed to the owning socket's Protocol, with
// Closed/Error additionally tearing down the endpoint's bookkeeping.
func (d *Dispatcher) processSignal(sig Signal) {
	switch s := sig.(type) {
	case PipeEvt:
		d.processPipeEvt(s)
	case AcceptorEvt:
		d.processAcceptorEvt(s)
	}
}

func (d *Dispatcher) processPipeEvt(evt PipeEvt) {
	sock, ok := d.session.Get(evt.SocketId)
	if !ok {
		return
	}
	ctx := newSocketContext(sock.Id, sock.Endpoints, d.schedule)

	switch evt.Kind {
	case PipeOpened:
		sock.Endpoints.AddPipe(evt.Pipe)
		if err := sock.Protocol.AddPipe(ctx, evt.EndpointId, evt.Pipe); err != nil {
			evt.Pipe.Close()
			sock.Endpoints.RemovePipe(evt.EndpointId)
		}
	case PipeCanSend:
		sock.Protocol.OnSendReady(ctx, evt.EndpointId)
	case PipeSendNotReady:
		sock.Protocol.OnSendNotReady(ctx, evt.EndpointId)
	case PipeSent:
		sock.Protocol.OnSendAck(ctx, evt.EndpointId)
	case PipeCanRecv:
		sock.Protocol.OnRecvReady(ctx, evt.EndpointId)
	case PipeRecvNotReady:
		sock.Protocol.OnRecvNotReady(ctx, evt.EndpointId)
	case PipeReceived:
		sock.Protocol.OnRecvAck(ctx, evt.EndpointId, evt.Msg)
	case PipeError:
		sock.Protocol.OnPipeError(ctx, evt.EndpointId, evt.Err)
		sock.Protocol.RemovePipe(ctx, evt.EndpointId)
		sock.Endpoints.RemovePipe(evt.EndpointId)
	case PipeClosed:
		sock.Protocol.RemovePipe(ctx, evt.EndpointId)
		sock.Endpoints.RemovePipe(evt.EndpointId)
	}

	d.settleParked(sock, ctx)
}

func (d *Dispatcher) processAcceptorEvt(evt AcceptorEvt) {
	sock, ok := d.session.Get(evt.SocketId)
	if !ok {
		return
	}
	ctx := newSocketContext(sock.Id, sock.Endpoints, d.schedule)

	if evt.Err != nil {
		d.settleParked(sock, ctx)
		return
	}

	sock.Endpoints.AddPipe(evt.Accepted)
	if err := sock.Protocol.AddPipe(ctx, evt.Accepted.Id(), evt.Accepted); err != nil {
		evt.Accepted.Close()
		sock.Endpoints.RemovePipe(evt.Accepted.Id())
	}
	d.settleParked(sock, ctx)
}

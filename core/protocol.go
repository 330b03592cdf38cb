package core

// Protocol is the state machine behind one socket pattern. Every
// method takes the Context the dispatcher built for this call and
// returns without retaining it: a Protocol's only persistent state is
// whatever it stores on itself between calls (pending sends, fair
// queues, survey ids, ...), never a reference to a Context or a Pipe.
//
// Implementations follow one shape throughout: compute the next state
// from the current one and the event just observed, compare its
// send/recv readiness against the previous state's, and Raise a
// CanSend/CanRecv event on the transition so the dispatcher can wake a
// parked façade call.
type Protocol interface {
	Type() SocketType
	PeerType() SocketType

	AddPipe(ctx Context, eid EndpointId, pipe Pipe) *Error
	RemovePipe(ctx Context, eid EndpointId)

	OnSendReady(ctx Context, eid EndpointId)
	OnRecvReady(ctx Context, eid EndpointId)
	OnSendNotReady(ctx Context, eid EndpointId)
	OnRecvNotReady(ctx Context, eid EndpointId)
	OnSendAck(ctx Context, eid EndpointId)
	OnRecvAck(ctx Context, eid EndpointId, msg Message)
	OnPipeError(ctx Context, eid EndpointId, err *Error)

	Send(ctx Context, msg Message) *Error
	Recv(ctx Context) (Message, *Error)

	OnTimeout(ctx Context, payload Schedulable)

	SetOption(opt Option) *Error
	GetOption(name string) (interface{}, *Error)

	Close(ctx Context)
}

// Device reports whether p was created as a relay. For patterns that
// distinguish an initial reply from a forwarded one (Rep, Respondent),
// a device stays active after a send ack so a chain of devices can
// keep forwarding without the façade re-issuing Recv. Protocol-level
// framing is encoded and decoded in device mode exactly as outside it.
type Device interface {
	DeviceMode() bool
}

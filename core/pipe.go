package core

// Pipe is one connected transport endpoint as the protocol layer sees
// it: opaque beyond the ability to queue a message for send, ask for
// the next received message, and close. Every other detail (framing
// over a socket, an in-process channel, a stream multiplexed session)
// lives in the transport package that implements this interface.
//
// Send and Recv are fire-and-forget: the transport reports completion
// asynchronously by pushing a PipeEvt onto the signal bus, which the
// dispatcher turns back into a Protocol.OnSendAck/OnRecvAck call.
type Pipe interface {
	Id() EndpointId
	Send(msg Message) *Error
	Recv() *Error
	Close() *Error
}

// Dialer is implemented by whatever owns the transport registry: it
// resolves a URL's scheme to a transport and returns the EndpointId
// the dispatcher should track while the connection attempt, and then
// the connection itself, is in flight.
type Dialer interface {
	Connect(url string) (EndpointId, *Error)
	Bind(url string) (EndpointId, *Error)
}

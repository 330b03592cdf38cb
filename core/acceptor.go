package core

// Acceptor is a listening endpoint: something that, while open,
// produces new Pipes by pushing AcceptorEvt signals onto the bus. It
// has no send/recv surface of its own.
type Acceptor interface {
	Id() EndpointId
	Close() *Error
}

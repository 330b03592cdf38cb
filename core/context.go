package core

import "time"

// Network is the subset of the reactor a Protocol uses to drive its
// pipes: sending and asking to receive are fire-and-forget, with
// completion reported later as a signal the dispatcher turns back
// into a protocol call (OnSendAck, OnRecvAck, ...). A Protocol never
// talks to a transport directly; it only ever sees EndpointIds.
type Network interface {
	SendTo(eid EndpointId, msg Message) *Error
	RecvFrom(eid EndpointId) *Error
	CloseEndpoint(eid EndpointId) *Error
	Connect(url string) (EndpointId, *Error)
	Reconnect(eid EndpointId, url string) *Error
	Bind(url string) (EndpointId, *Error)
	Rebind(eid EndpointId, url string) *Error
}

// Scheduler arms and disarms timer wheel entries on the protocol's
// behalf. Schedule returns a handle Cancel later consumes; cancelling
// an already-fired handle is a no-op.
type Scheduler interface {
	Schedule(delay time.Duration, payload Schedulable) Scheduled
	Cancel(s Scheduled)
}

// Context is Network plus Scheduler plus the ability to raise an
// Event, the only thing a Protocol method takes besides its own
// arguments. The dispatcher builds a fresh Context before every call
// into a protocol and discards it right after: a protocol that held
// on to one past the call returning would be reaching for state the
// reactor has already moved past.
type Context interface {
	Network
	Scheduler
	Raise(evt Event)
}

// socketContext is the dispatcher's concrete Context, scoped to one
// socket for the duration of a single call into its Protocol.
type socketContext struct {
	socketId  SocketId
	endpoints *EndpointCollection
	schedule  *Schedule
	events    []Event
}

func newSocketContext(socketId SocketId, endpoints *EndpointCollection, schedule *Schedule) *socketContext {
	return &socketContext{socketId: socketId, endpoints: endpoints, schedule: schedule}
}

func (c *socketContext) SendTo(eid EndpointId, msg Message) *Error {
	pipe, ok := c.endpoints.Pipe(eid)
	if !ok {
		return NewError(NotConnected, "no pipe for endpoint %d", eid)
	}
	return pipe.Send(msg)
}

func (c *socketContext) RecvFrom(eid EndpointId) *Error {
	pipe, ok := c.endpoints.Pipe(eid)
	if !ok {
		return NewError(NotConnected, "no pipe for endpoint %d", eid)
	}
	return pipe.Recv()
}

func (c *socketContext) CloseEndpoint(eid EndpointId) *Error {
	if pipe, ok := c.endpoints.Pipe(eid); ok {
		c.endpoints.RemovePipe(eid)
		return pipe.Close()
	}
	if acc, ok := c.endpoints.Acceptor(eid); ok {
		c.endpoints.RemoveAcceptor(eid)
		return acc.Close()
	}
	return NewError(NotConnected, "no endpoint %d", eid)
}

func (c *socketContext) Connect(url string) (EndpointId, *Error) {
	return c.endpoints.dialer.Connect(url)
}

func (c *socketContext) Reconnect(eid EndpointId, url string) *Error {
	_, err := c.endpoints.dialer.Connect(url)
	return err
}

func (c *socketContext) Bind(url string) (EndpointId, *Error) {
	return c.endpoints.dialer.Bind(url)
}

func (c *socketContext) Rebind(eid EndpointId, url string) *Error {
	_, err := c.endpoints.dialer.Bind(url)
	return err
}

func (c *socketContext) Schedule(delay time.Duration, payload Schedulable) Scheduled {
	return c.schedule.Insert(c.socketId, delay, payload)
}

func (c *socketContext) Cancel(s Scheduled) {
	c.schedule.Remove(s)
}

func (c *socketContext) Raise(evt Event) {
	c.events = append(c.events, evt)
}

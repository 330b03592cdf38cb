// Package facade is the synchronous, blocking API an application
// actually calls: Socket.Send, Socket.Recv, Socket.Connect and so on.
// Every call is translated into a core.Request pushed onto the
// reactor's request channel and blocks on that request's reply
// channel, so from the caller's perspective a socket behaves like any
// ordinary blocking I/O handle even though the reactor backing it is
// single-threaded and services every socket in the process.
package facade

import (
	"github.com/npio/scaleproto/core"
)

// Session owns one Dispatcher and every Socket created against it.
// Close tears the whole thing down.
type Session struct {
	dispatcher *core.Dispatcher
}

// NewSession builds a Dispatcher, hands it to register to add protocol
// factories (RegisterBuiltins adds every built-in one), starts it on
// its own goroutine, and returns a Session ready to create sockets on.
func NewSession(dialerFor core.DialerFactory, register func(*core.Dispatcher)) *Session {
	d := core.New(dialerFor)
	register(d)
	go d.Run()
	return &Session{dispatcher: d}
}

// Close stops the underlying dispatcher, closing every socket and
// pipe it still owns.
func (s *Session) Close() {
	s.dispatcher.Stop()
}

// NewSocket creates a socket of the given type and returns a Socket
// wrapping it.
func (s *Session) NewSocket(t core.SocketType) (*Socket, error) {
	return s.newSocket(t, false)
}

// NewDeviceSocket creates a socket that acts as a relay: for Rep and
// Respondent this means the protocol stays Active after a send ack
// instead of reverting to Idle, letting a device loop keep forwarding
// without the façade re-issuing Recv between hops.
func (s *Session) NewDeviceSocket(t core.SocketType) (*Socket, error) {
	return s.newSocket(t, true)
}

func (s *Session) newSocket(t core.SocketType, device bool) (*Socket, error) {
	reply := s.call(0, core.CreateSocket{Type: t, Device: device})
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &Socket{session: s, id: reply.SocketId}, nil
}

func (s *Session) call(id core.SocketId, body core.RequestBody) core.Reply {
	reply := make(chan core.Reply, 1)
	s.dispatcher.Requests() <- core.Request{SocketId: id, Body: body, Reply: reply}
	return <-reply
}

// Socket is a blocking handle to one socket in the session.
type Socket struct {
	session *Session
	id      core.SocketId
}

// Connect opens an outbound connection to url and returns the id of
// the endpoint tracking it. The connection attempt itself proceeds in
// the background; Connect returning success means the request was
// accepted, not that a peer has answered yet.
func (s *Socket) Connect(url string) (core.EndpointId, error) {
	reply := s.session.call(s.id, core.ConnectEndpoint{URL: url})
	if reply.Err != nil {
		return 0, reply.Err
	}
	return reply.EndpointId, nil
}

// Bind starts listening on url.
func (s *Socket) Bind(url string) (core.EndpointId, error) {
	reply := s.session.call(s.id, core.BindEndpoint{URL: url})
	if reply.Err != nil {
		return 0, reply.Err
	}
	return reply.EndpointId, nil
}

// CloseEndpoint tears down the pipe registered under eid without
// closing the whole socket. Listeners are not registered as endpoints,
// so an id returned by Bind gets a NotConnected error.
func (s *Socket) CloseEndpoint(eid core.EndpointId) error {
	reply := s.session.call(s.id, core.CloseEndpoint{EndpointId: eid})
	return asError(reply.Err)
}

// Send blocks until the protocol accepts msg for sending or the
// socket's SendTimeout elapses.
func (s *Socket) Send(body []byte) error {
	reply := s.session.call(s.id, core.SendMessage{Msg: core.NewMessage(body)})
	return asError(reply.Err)
}

// Recv blocks until a message is available or the socket's
// RecvTimeout elapses.
func (s *Socket) Recv() ([]byte, error) {
	reply := s.session.call(s.id, core.RecvMessage{})
	if reply.Err != nil {
		return nil, reply.Err
	}
	return reply.Msg.Body, nil
}

// SetOption applies a configuration option to the socket.
func (s *Socket) SetOption(opt core.Option) error {
	reply := s.session.call(s.id, core.SetSocketOption{Option: opt})
	return asError(reply.Err)
}

// GetOption reads back a configuration option by name.
func (s *Socket) GetOption(name string) (interface{}, error) {
	reply := s.session.call(s.id, core.GetSocketOption{Name: name})
	if reply.Err != nil {
		return nil, reply.Err
	}
	return reply.Value, nil
}

// Close tears the socket down: every pipe and acceptor it owns is
// closed and its protocol's own Close is called.
func (s *Socket) Close() error {
	reply := s.session.call(s.id, core.CloseSocket{})
	return asError(reply.Err)
}

func asError(err *core.Error) error {
	if err == nil {
		return nil
	}
	return err
}

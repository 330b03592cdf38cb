// Package tcp implements the "tcp://" transport: one smux session per
// TCP connection, using github.com/xtaci/smux, the library the teacher
// multiplexes its own Session Manager data channel traffic with. The
// dialing side opens one stream per connection; the listening side
// turns every stream a peer opens into a pipe of its own.
package tcp

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/npio/scaleproto/core"
	"github.com/npio/scaleproto/core/wire"
	"github.com/npio/scaleproto/internal/backoffcfg"
	"github.com/npio/scaleproto/internal/log"
	"github.com/xtaci/smux"
)

// Transport is one socket's TCP dialer: it implements core.Dialer,
// dials/accepts smux sessions and reports pipe/acceptor lifecycle onto
// the socket's bus.
type Transport struct {
	socket core.SocketId
	bus    *core.Bus
	nextId uint64

	noDelay   bool
	retryIvl  time.Duration
	retryMax  time.Duration

	mu        sync.Mutex
	listeners map[core.EndpointId]net.Listener
	sessions  map[core.EndpointId]*smux.Session

	log log.T
}

// New returns a Transport scoped to socketId.
func New(socketId core.SocketId, bus *core.Bus) *Transport {
	return &Transport{
		socket:    socketId,
		bus:       bus,
		retryIvl:  100 * time.Millisecond,
		listeners: make(map[core.EndpointId]net.Listener),
		sessions:  make(map[core.EndpointId]*smux.Session),
		log:       log.WithContext("transport/tcp"),
	}
}

// SetTcpNoDelay controls whether new connections disable Nagle's
// algorithm, mirroring the core.TcpNoDelay socket option.
func (t *Transport) SetTcpNoDelay(v bool) { t.noDelay = v }

// SetRetry configures the reconnect backoff bounds consulted by
// Connect's background retry loop.
func (t *Transport) SetRetry(ivl, max time.Duration) {
	t.retryIvl, t.retryMax = ivl, max
}

func (t *Transport) allocEndpointId() core.EndpointId {
	return core.EndpointId(atomic.AddUint64(&t.nextId, 1))
}

// Connect dials addr in the background, opens one smux stream on the
// new session as the endpoint's pipe, and retries with
// exponential backoff (backoffcfg.Reconnect, grounded on the teacher's
// own cenkalti/backoff-based retry helper) until the dial succeeds.
// It never blocks the reactor goroutine that called it.
func (t *Transport) Connect(url string) (core.EndpointId, *core.Error) {
	addr, err := parseURL(url)
	if err != nil {
		return 0, err
	}
	eid := t.allocEndpointId()
	go t.dialWithRetry(addr, eid)
	return eid, nil
}

func (t *Transport) dialWithRetry(addr string, eid core.EndpointId) {
	b := backoffcfg.Reconnect(t.retryIvl, t.retryMax)
	for {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			t.applyNoDelay(conn)
			session, sessErr := smux.Client(conn, smuxConfig())
			if sessErr == nil {
				t.onSessionEstablished(eid, session, true)
				return
			}
			conn.Close()
		}
		t.log.Debugf("dial %s failed, retrying: %v", addr, err)
		time.Sleep(b.NextBackOff())
	}
}

// Bind listens on addr and accepts smux sessions, one per connecting
// peer, each producing one pipe per accepted stream.
func (t *Transport) Bind(url string) (core.EndpointId, *core.Error) {
	addr, err := parseURL(url)
	if err != nil {
		return 0, err
	}
	ln, lerr := net.Listen("tcp", addr)
	if lerr != nil {
		return 0, core.NewError(core.NotConnected, "listen %s: %v", addr, lerr)
	}
	eid := t.allocEndpointId()

	t.mu.Lock()
	t.listeners[eid] = ln
	t.mu.Unlock()

	go t.acceptLoop(ln, eid)
	return eid, nil
}

func (t *Transport) acceptLoop(ln net.Listener, eid core.EndpointId) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		t.applyNoDelay(conn)
		session, sessErr := smux.Server(conn, smuxConfig())
		if sessErr != nil {
			conn.Close()
			continue
		}
		t.onSessionEstablished(eid, session, false)
	}
}

// onSessionEstablished opens (dial side) or accepts (bind side) the
// session's first stream as a pipe and keeps accepting further
// streams on it for patterns that open more than one logical pipe per
// peer.
func (t *Transport) onSessionEstablished(eid core.EndpointId, session *smux.Session, dialSide bool) {
	t.mu.Lock()
	t.sessions[eid] = session
	t.mu.Unlock()

	if dialSide {
		stream, err := session.OpenStream()
		if err != nil {
			return
		}
		pipeEid := t.allocEndpointId()
		pipe := newPipe(pipeEid, t.socket, t.bus, stream)
		t.bus.Push(core.PipeEvt{SocketId: t.socket, EndpointId: pipeEid, Kind: core.PipeOpened, Pipe: pipe})
		pipe.announceReady()
		return
	}

	for {
		stream, err := session.AcceptStream()
		if err != nil {
			return
		}
		pipeEid := t.allocEndpointId()
		pipe := newPipe(pipeEid, t.socket, t.bus, stream)
		t.bus.Push(core.AcceptorEvt{SocketId: t.socket, EndpointId: pipeEid, Accepted: pipe})
		pipe.announceReady()
	}
}

func (t *Transport) applyNoDelay(conn net.Conn) {
	if !t.noDelay {
		return
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		setNoDelayUnix(tc)
	}
}

func smuxConfig() *smux.Config {
	cfg := smux.DefaultConfig()
	cfg.KeepAliveInterval = 10 * time.Second
	return cfg
}

func parseURL(url string) (string, *core.Error) {
	const scheme = "tcp://"
	if len(url) <= len(scheme) || url[:len(scheme)] != scheme {
		return "", core.NewError(core.InvalidInput, "not a tcp:// url: %q", url)
	}
	return url[len(scheme):], nil
}

// pipe adapts one smux.Stream to core.Pipe, framing every Message with
// core/wire over the stream's byte-oriented Read/Write.
type pipe struct {
	id     core.EndpointId
	socket core.SocketId
	bus    *core.Bus
	stream *smux.Stream
	reader *bufio.Reader

	closeOnce sync.Once
}

func newPipe(eid core.EndpointId, socket core.SocketId, bus *core.Bus, stream *smux.Stream) *pipe {
	return &pipe{id: eid, socket: socket, bus: bus, stream: stream, reader: bufio.NewReader(stream)}
}

func (p *pipe) Id() core.EndpointId { return p.id }

func (p *pipe) Send(msg core.Message) *core.Error {
	go func() {
		if err := wire.WriteMessage(p.stream, msg); err != nil {
			p.bus.Push(core.PipeEvt{SocketId: p.socket, EndpointId: p.id, Kind: core.PipeError, Err: core.NewError(core.InvalidData, "tcp write: %v", err)})
			return
		}
		p.bus.Push(core.PipeEvt{SocketId: p.socket, EndpointId: p.id, Kind: core.PipeSent})
	}()
	return nil
}

func (p *pipe) Recv() *core.Error {
	go func() {
		msg, err := wire.ReadMessage(p.reader, 0)
		if err != nil {
			p.bus.Push(core.PipeEvt{SocketId: p.socket, EndpointId: p.id, Kind: core.PipeError, Err: core.NewError(core.InvalidData, "tcp read: %v", err)})
			return
		}
		p.bus.Push(core.PipeEvt{SocketId: p.socket, EndpointId: p.id, Kind: core.PipeReceived, Msg: msg})
	}()
	return nil
}

func (p *pipe) Close() *core.Error {
	p.closeOnce.Do(func() { p.stream.Close() })
	return nil
}

func (p *pipe) announceReady() {
	p.bus.Push(core.PipeEvt{SocketId: p.socket, EndpointId: p.id, Kind: core.PipeCanSend})
	p.bus.Push(core.PipeEvt{SocketId: p.socket, EndpointId: p.id, Kind: core.PipeCanRecv})
}

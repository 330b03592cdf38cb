// Package ws implements the "ws://" transport: each WebSocket
// connection carries exactly one logical pipe, since a browser-side
// peer is a single endpoint with no need for smux-style multiplexing.
// Grounded on github.com/gorilla/websocket, the dependency behind the
// teacher's own Session Manager data channel and shared by several
// other repos in the retrieval pack.
package ws

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/npio/scaleproto/core"
	"github.com/npio/scaleproto/core/wire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Transport is one socket's WebSocket dialer.
type Transport struct {
	socket core.SocketId
	bus    *core.Bus
	nextId uint64

	mu      sync.Mutex
	servers map[core.EndpointId]*http.Server
}

// New returns a Transport scoped to socketId.
func New(socketId core.SocketId, bus *core.Bus) *Transport {
	return &Transport{socket: socketId, bus: bus, servers: make(map[core.EndpointId]*http.Server)}
}

func (t *Transport) allocEndpointId() core.EndpointId {
	return core.EndpointId(atomic.AddUint64(&t.nextId, 1))
}

// Connect dials addr as a WebSocket client in the background.
func (t *Transport) Connect(url string) (core.EndpointId, *core.Error) {
	if _, err := parseURL(url); err != nil {
		return 0, err
	}
	eid := t.allocEndpointId()
	go t.dial(url, eid)
	return eid, nil
}

func (t *Transport) dial(url string, eid core.EndpointId) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.bus.Push(core.PipeEvt{SocketId: t.socket, EndpointId: eid, Kind: core.PipeError, Err: core.NewError(core.NotConnected, "ws dial %s: %v", url, err)})
		return
	}
	p := newPipe(eid, t.socket, t.bus, conn)
	t.bus.Push(core.PipeEvt{SocketId: t.socket, EndpointId: eid, Kind: core.PipeOpened, Pipe: p})
	p.announceReady()
}

// Bind starts an HTTP server upgrading every incoming request on addr
// to a WebSocket, each becoming one accepted pipe.
func (t *Transport) Bind(url string) (core.EndpointId, *core.Error) {
	addr, err := parseURL(url)
	if err != nil {
		return 0, err
	}
	eid := t.allocEndpointId()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, uerr := upgrader.Upgrade(w, r, nil)
		if uerr != nil {
			return
		}
		pipeEid := t.allocEndpointId()
		p := newPipe(pipeEid, t.socket, t.bus, conn)
		t.bus.Push(core.AcceptorEvt{SocketId: t.socket, EndpointId: pipeEid, Accepted: p})
		p.announceReady()
	})

	server := &http.Server{Addr: addr, Handler: mux}
	t.mu.Lock()
	t.servers[eid] = server
	t.mu.Unlock()

	go server.ListenAndServe()
	return eid, nil
}

func parseURL(url string) (string, *core.Error) {
	const scheme = "ws://"
	if len(url) <= len(scheme) || url[:len(scheme)] != scheme {
		return "", core.NewError(core.InvalidInput, "not a ws:// url: %q", url)
	}
	return url[len(scheme):], nil
}

// pipe adapts one *websocket.Conn to core.Pipe. Each Message is one
// binary frame holding core/wire.Encode's bytes, parsed back with
// Decode; the frame keeps the same length-prefixed layout that
// WriteMessage/ReadMessage use on a byte stream.
type pipe struct {
	id     core.EndpointId
	socket core.SocketId
	bus    *core.Bus
	conn   *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newPipe(eid core.EndpointId, socket core.SocketId, bus *core.Bus, conn *websocket.Conn) *pipe {
	return &pipe{id: eid, socket: socket, bus: bus, conn: conn}
}

func (p *pipe) Id() core.EndpointId { return p.id }

func (p *pipe) Send(msg core.Message) *core.Error {
	go func() {
		p.writeMu.Lock()
		err := p.conn.WriteMessage(websocket.BinaryMessage, wire.Encode(msg))
		p.writeMu.Unlock()
		if err != nil {
			p.bus.Push(core.PipeEvt{SocketId: p.socket, EndpointId: p.id, Kind: core.PipeError, Err: core.NewError(core.InvalidData, "ws write: %v", err)})
			return
		}
		p.bus.Push(core.PipeEvt{SocketId: p.socket, EndpointId: p.id, Kind: core.PipeSent})
	}()
	return nil
}

func (p *pipe) Recv() *core.Error {
	go func() {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			p.bus.Push(core.PipeEvt{SocketId: p.socket, EndpointId: p.id, Kind: core.PipeError, Err: core.NewError(core.InvalidData, "ws read: %v", err)})
			return
		}
		msg, derr := wire.Decode(data)
		if derr != nil {
			p.bus.Push(core.PipeEvt{SocketId: p.socket, EndpointId: p.id, Kind: core.PipeError, Err: core.NewError(core.InvalidData, "ws decode: %v", derr)})
			return
		}
		p.bus.Push(core.PipeEvt{SocketId: p.socket, EndpointId: p.id, Kind: core.PipeReceived, Msg: msg})
	}()
	return nil
}

func (p *pipe) Close() *core.Error {
	p.closeOnce.Do(func() { p.conn.Close() })
	return nil
}

func (p *pipe) announceReady() {
	p.bus.Push(core.PipeEvt{SocketId: p.socket, EndpointId: p.id, Kind: core.PipeCanSend})
	p.bus.Push(core.PipeEvt{SocketId: p.socket, EndpointId: p.id, Kind: core.PipeCanRecv})
}

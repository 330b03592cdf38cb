// Package inproc implements the "inproc://" transport: two sockets in
// the same process connected by a pair of buffered channels, with no
// copying, serialization or framing, since a Message crosses directly
// from one protocol's Send to the other's OnRecvAck.
package inproc

import (
	"sync"
	"sync/atomic"

	"github.com/npio/scaleproto/core"
)

// registry is the process-wide table of pending binds, keyed by the
// "inproc://name" address a bind was given. A connect against a name
// with no matching bind blocks until one appears, mirroring how a TCP
// connect blocks until a listener exists.
type registry struct {
	mu      sync.Mutex
	waiting map[string][]chan *Transport
	bound   map[string]*Transport
}

var global = &registry{
	waiting: make(map[string][]chan *Transport),
	bound:   make(map[string]*Transport),
}

// Transport is one socket's inproc dialer: it implements core.Dialer
// and reports connection events for that socket onto its bus.
type Transport struct {
	socket core.SocketId
	bus    *core.Bus
	nextId uint64
}

// New returns a Transport scoped to socketId, pushing PipeOpened and
// AcceptorEvt signals onto bus as connections complete.
func New(socketId core.SocketId, bus *core.Bus) *Transport {
	return &Transport{socket: socketId, bus: bus}
}

func (t *Transport) allocEndpointId() core.EndpointId {
	return core.EndpointId(atomic.AddUint64(&t.nextId, 1))
}

// Connect never blocks the caller, which matters because it is always
// called from the reactor's own goroutine: it allocates the local
// endpoint id immediately and finishes the handshake (finding or
// waiting for a matching Bind, then pushing PipeOpened) on a
// background goroutine.
func (t *Transport) Connect(url string) (core.EndpointId, *core.Error) {
	name, err := parseURL(url)
	if err != nil {
		return 0, err
	}

	eid := t.allocEndpointId()
	go t.completeConnect(name, eid)
	return eid, nil
}

func (t *Transport) completeConnect(name string, eid core.EndpointId) {
	global.mu.Lock()
	peer, ok := global.bound[name]
	if !ok {
		ch := make(chan *Transport, 1)
		global.waiting[name] = append(global.waiting[name], ch)
		global.mu.Unlock()
		peer = <-ch
	} else {
		global.mu.Unlock()
	}

	local, remote := newPipePair(eid)
	local.socket = t.socket
	local.bus = t.bus
	go peer.deliverAcceptedPipe(remote)
	t.bus.Push(core.PipeEvt{SocketId: t.socket, EndpointId: eid, Kind: core.PipeOpened, Pipe: local})
	local.announceReady()
}

func (t *Transport) Bind(url string) (core.EndpointId, *core.Error) {
	name, err := parseURL(url)
	if err != nil {
		return 0, err
	}

	global.mu.Lock()
	global.bound[name] = t
	waiters := global.waiting[name]
	delete(global.waiting, name)
	global.mu.Unlock()

	for _, ch := range waiters {
		ch <- t
	}
	return t.allocEndpointId(), nil
}

// deliverAcceptedPipe is invoked on the accepting side of a Connect,
// assigning the remote end of the pipe pair its own id on this
// socket's side and pushing it onto the bus as an AcceptorEvt.
func (t *Transport) deliverAcceptedPipe(remote *Pipe) {
	eid := t.allocEndpointId()
	remote.id = eid
	remote.socket = t.socket
	remote.bus = t.bus
	t.bus.Push(core.AcceptorEvt{SocketId: t.socket, EndpointId: eid, Accepted: remote})
	remote.announceReady()
}

func parseURL(url string) (string, *core.Error) {
	const scheme = "inproc://"
	if len(url) <= len(scheme) || url[:len(scheme)] != scheme {
		return "", core.NewError(core.InvalidInput, "not an inproc:// url: %q", url)
	}
	return url[len(scheme):], nil
}

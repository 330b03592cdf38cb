package inproc

import (
	"testing"
	"time"

	"github.com/npio/scaleproto/core"
	"github.com/npio/scaleproto/protocol/pull"
	"github.com/npio/scaleproto/protocol/push"
	"github.com/npio/scaleproto/protocol/rep"
	"github.com/npio/scaleproto/protocol/req"
	"github.com/stretchr/testify/require"
)

func dialerFactory() core.DialerFactory {
	return func(id core.SocketId, bus *core.Bus) core.Dialer {
		return New(id, bus)
	}
}

func newTestDispatcher(t *testing.T) *core.Dispatcher {
	t.Helper()
	d := core.New(dialerFactory())
	d.Register(core.Push, push.New)
	d.Register(core.Pull, pull.New)
	go d.Run()
	t.Cleanup(d.Stop)
	return d
}

func newReqRepTestDispatcher(t *testing.T) *core.Dispatcher {
	t.Helper()
	d := core.New(dialerFactory())
	d.Register(core.Req, req.New)
	d.Register(core.Rep, func() core.Protocol { return rep.New(false) })
	go d.Run()
	t.Cleanup(d.Stop)
	return d
}

func createSocket(t *testing.T, d *core.Dispatcher, typ core.SocketType) core.SocketId {
	t.Helper()
	reply := make(chan core.Reply, 1)
	d.Requests() <- core.Request{Body: core.CreateSocket{Type: typ}, Reply: reply}
	r := <-reply
	require.Nil(t, r.Err)
	return r.SocketId
}

func TestPushPullRoundTripOverInprocTransport(t *testing.T) {
	d := newTestDispatcher(t)

	pusher := createSocket(t, d, core.Push)
	puller := createSocket(t, d, core.Pull)

	bindReply := make(chan core.Reply, 1)
	d.Requests() <- core.Request{SocketId: puller, Body: core.BindEndpoint{URL: "inproc://test-push-pull"}, Reply: bindReply}
	require.Nil(t, (<-bindReply).Err)

	connectReply := make(chan core.Reply, 1)
	d.Requests() <- core.Request{SocketId: pusher, Body: core.ConnectEndpoint{URL: "inproc://test-push-pull"}, Reply: connectReply}
	require.Nil(t, (<-connectReply).Err)

	time.Sleep(20 * time.Millisecond)

	sendReply := make(chan core.Reply, 1)
	d.Requests() <- core.Request{SocketId: pusher, Body: core.SendMessage{Msg: core.NewMessage([]byte("hello"))}, Reply: sendReply}
	require.Nil(t, (<-sendReply).Err)

	var recvReply chan core.Reply
	var r core.Reply
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		recvReply = make(chan core.Reply, 1)
		d.Requests() <- core.Request{SocketId: puller, Body: core.RecvMessage{}, Reply: recvReply}
		r = <-recvReply
		if r.Err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.Nil(t, r.Err)
	require.Equal(t, []byte("hello"), r.Msg.Body)
}

func TestReqRepRoundTripOverInprocTransport(t *testing.T) {
	d := newReqRepTestDispatcher(t)

	replier := createSocket(t, d, core.Rep)
	requester := createSocket(t, d, core.Req)

	bindReply := make(chan core.Reply, 1)
	d.Requests() <- core.Request{SocketId: replier, Body: core.BindEndpoint{URL: "inproc://test-req-rep"}, Reply: bindReply}
	require.Nil(t, (<-bindReply).Err)

	connectReply := make(chan core.Reply, 1)
	d.Requests() <- core.Request{SocketId: requester, Body: core.ConnectEndpoint{URL: "inproc://test-req-rep"}, Reply: connectReply}
	require.Nil(t, (<-connectReply).Err)

	time.Sleep(20 * time.Millisecond)

	sendReply := make(chan core.Reply, 1)
	d.Requests() <- core.Request{SocketId: requester, Body: core.SendMessage{Msg: core.NewMessage([]byte("DATE"))}, Reply: sendReply}
	require.Nil(t, (<-sendReply).Err)

	received := pollRecv(t, d, replier)
	require.Equal(t, []byte("DATE"), received.Msg.Body)

	replyReply := make(chan core.Reply, 1)
	d.Requests() <- core.Request{SocketId: replier, Body: core.SendMessage{Msg: core.NewMessage([]byte("some date"))}, Reply: replyReply}
	require.Nil(t, (<-replyReply).Err)

	reply := pollRecv(t, d, requester)
	require.Equal(t, []byte("some date"), reply.Msg.Body)

	secondSend := make(chan core.Reply, 1)
	d.Requests() <- core.Request{SocketId: requester, Body: core.SendMessage{Msg: core.NewMessage([]byte("DATE"))}, Reply: secondSend}
	require.Nil(t, (<-secondSend).Err, "a second Send on the same pipe must not permanently WouldBlock")

	second := pollRecv(t, d, replier)
	require.Equal(t, []byte("DATE"), second.Msg.Body)
}

// pollRecv polls RecvMessage against sock until it succeeds or a
// one-second deadline passes.
func pollRecv(t *testing.T, d *core.Dispatcher, sock core.SocketId) core.Reply {
	t.Helper()
	var r core.Reply
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		recvReply := make(chan core.Reply, 1)
		d.Requests() <- core.Request{SocketId: sock, Body: core.RecvMessage{}, Reply: recvReply}
		r = <-recvReply
		if r.Err == nil {
			return r
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Nil(t, r.Err)
	return r
}

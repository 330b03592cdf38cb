package rep

import (
	"testing"
	"time"

	"github.com/npio/scaleproto/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContext struct {
	sent          map[core.EndpointId][]core.Message
	recvRequested []core.EndpointId
	events        []core.Event
}

func newFakeContext() *fakeContext {
	return &fakeContext{sent: make(map[core.EndpointId][]core.Message)}
}

func (f *fakeContext) SendTo(eid core.EndpointId, msg core.Message) *core.Error {
	f.sent[eid] = append(f.sent[eid], msg)
	return nil
}
func (f *fakeContext) RecvFrom(eid core.EndpointId) *core.Error {
	f.recvRequested = append(f.recvRequested, eid)
	return nil
}
func (f *fakeContext) CloseEndpoint(eid core.EndpointId) *core.Error        { return nil }
func (f *fakeContext) Connect(url string) (core.EndpointId, *core.Error)   { return 0, nil }
func (f *fakeContext) Reconnect(eid core.EndpointId, url string) *core.Error { return nil }
func (f *fakeContext) Bind(url string) (core.EndpointId, *core.Error)      { return 0, nil }
func (f *fakeContext) Rebind(eid core.EndpointId, url string) *core.Error  { return nil }
func (f *fakeContext) Schedule(delay time.Duration, payload core.Schedulable) core.Scheduled {
	return 0
}
func (f *fakeContext) Cancel(s core.Scheduled) {}
func (f *fakeContext) Raise(evt core.Event)    { f.events = append(f.events, evt) }

func backtraceFrame(terminal bool) []byte {
	b := []byte{0x00, 0x00, 0x00, 0x01}
	if terminal {
		b[0] = 0x80
	}
	return b
}

func TestRecvDecodesBacktraceAndBuffersBody(t *testing.T) {
	p := New(false)
	ctx := newFakeContext()

	require.Nil(t, p.AddPipe(ctx, 1, nil))
	p.OnRecvReady(ctx, 1)

	raw := core.Message{Header: backtraceFrame(true), Body: []byte("request")}
	p.OnRecvAck(ctx, 1, raw)

	msg, err := p.Recv(ctx)
	require.Nil(t, err)
	assert.Equal(t, []byte("request"), msg.Body)
}

func TestSendWithoutPendingRequestErrors(t *testing.T) {
	p := New(false)
	ctx := newFakeContext()

	err := p.Send(ctx, core.NewMessage([]byte("reply")))
	require.Error(t, err)
	assert.Equal(t, core.Other, err.Kind)
}

func TestSendRetracesBacktraceToOriginatingPipe(t *testing.T) {
	p := New(false)
	ctx := newFakeContext()

	require.Nil(t, p.AddPipe(ctx, 7, nil))
	p.OnRecvReady(ctx, 7)
	raw := core.Message{Header: backtraceFrame(true), Body: []byte("request")}
	p.OnRecvAck(ctx, 7, raw)
	_, err := p.Recv(ctx)
	require.Nil(t, err)

	require.Nil(t, p.Send(ctx, core.NewMessage([]byte("reply"))))

	require.Len(t, ctx.sent[7], 1)
	assert.Equal(t, backtraceFrame(true), ctx.sent[7][0].Header)
	assert.Equal(t, []byte("reply"), ctx.sent[7][0].Body)
}

func TestDeviceModeStaysActiveAfterSend(t *testing.T) {
	p := New(true).(*Rep)
	ctx := newFakeContext()

	require.Nil(t, p.AddPipe(ctx, 1, nil))
	p.OnRecvReady(ctx, 1)
	raw := core.Message{Header: backtraceFrame(true), Body: []byte("request")}
	p.OnRecvAck(ctx, 1, raw)
	_, err := p.Recv(ctx)
	require.Nil(t, err)

	require.Nil(t, p.Send(ctx, core.NewMessage([]byte("reply1"))))
	p.OnSendAck(ctx, 1)
	require.NotNil(t, p.active)

	require.Nil(t, p.Send(ctx, core.NewMessage([]byte("reply2"))))
	assert.Len(t, ctx.sent[1], 2)
}

func TestTruncatedBacktraceIsDiscarded(t *testing.T) {
	p := New(false)
	ctx := newFakeContext()

	require.Nil(t, p.AddPipe(ctx, 1, nil))
	p.OnRecvReady(ctx, 1)

	raw := core.Message{Header: []byte{0x00, 0x00, 0x00}}
	p.OnRecvAck(ctx, 1, raw)

	_, err := p.Recv(ctx)
	require.Error(t, err)
	assert.Equal(t, core.WouldBlock, err.Kind)
}

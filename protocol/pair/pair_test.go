package pair

import (
	"testing"
	"time"

	"github.com/npio/scaleproto/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContext struct {
	sent   map[core.EndpointId][]core.Message
	closed []core.EndpointId
	events []core.Event
}

func newFakeContext() *fakeContext {
	return &fakeContext{sent: make(map[core.EndpointId][]core.Message)}
}

func (f *fakeContext) SendTo(eid core.EndpointId, msg core.Message) *core.Error {
	f.sent[eid] = append(f.sent[eid], msg)
	return nil
}
func (f *fakeContext) RecvFrom(eid core.EndpointId) *core.Error { return nil }
func (f *fakeContext) CloseEndpoint(eid core.EndpointId) *core.Error {
	f.closed = append(f.closed, eid)
	return nil
}
func (f *fakeContext) Connect(url string) (core.EndpointId, *core.Error)    { return 0, nil }
func (f *fakeContext) Reconnect(eid core.EndpointId, url string) *core.Error { return nil }
func (f *fakeContext) Bind(url string) (core.EndpointId, *core.Error)       { return 0, nil }
func (f *fakeContext) Rebind(eid core.EndpointId, url string) *core.Error   { return nil }
func (f *fakeContext) Schedule(delay time.Duration, payload core.Schedulable) core.Scheduled {
	return 0
}
func (f *fakeContext) Cancel(s core.Scheduled) {}
func (f *fakeContext) Raise(evt core.Event)    { f.events = append(f.events, evt) }

func TestSecondPipeIsClosedImmediately(t *testing.T) {
	p := New()
	ctx := newFakeContext()

	require.Nil(t, p.AddPipe(ctx, 1, nil))
	require.Nil(t, p.AddPipe(ctx, 2, nil))

	assert.Equal(t, []core.EndpointId{2}, ctx.closed)
}

func TestSendRequiresSendReadyPeer(t *testing.T) {
	p := New()
	ctx := newFakeContext()

	require.Nil(t, p.AddPipe(ctx, 1, nil))
	err := p.Send(ctx, core.NewMessage([]byte("hi")))
	require.Error(t, err)
	assert.Equal(t, core.WouldBlock, err.Kind)

	p.OnSendReady(ctx, 1)
	require.Nil(t, p.Send(ctx, core.NewMessage([]byte("hi"))))
	assert.Len(t, ctx.sent[1], 1)
}

func TestOnSendAckReactivatesThePipeForASecondSend(t *testing.T) {
	p := New()
	ctx := newFakeContext()

	require.Nil(t, p.AddPipe(ctx, 1, nil))
	p.OnSendReady(ctx, 1)
	require.Nil(t, p.Send(ctx, core.NewMessage([]byte("first"))))
	require.Len(t, ctx.sent[1], 1)

	err := p.Send(ctx, core.NewMessage([]byte("second")))
	require.Error(t, err, "sendReady was cleared by the first Send")
	assert.Equal(t, core.WouldBlock, err.Kind)

	p.OnSendAck(ctx, 1)
	require.Nil(t, p.Send(ctx, core.NewMessage([]byte("second"))))
	assert.Len(t, ctx.sent[1], 2, "OnSendAck must reactivate pipe 1 so a second Send can reach it")
}

func TestRecvOnlySucceedsAfterAck(t *testing.T) {
	p := New()
	ctx := newFakeContext()

	require.Nil(t, p.AddPipe(ctx, 1, nil))
	_, err := p.Recv(ctx)
	require.Error(t, err)

	p.OnRecvReady(ctx, 1)
	p.OnRecvAck(ctx, 1, core.NewMessage([]byte("yo")))

	msg, err := p.Recv(ctx)
	require.Nil(t, err)
	assert.Equal(t, []byte("yo"), msg.Body)
}

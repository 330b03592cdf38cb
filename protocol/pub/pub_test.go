package pub

import (
	"testing"
	"time"

	"github.com/npio/scaleproto/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContext struct {
	sent map[core.EndpointId][]core.Message
}

func newFakeContext() *fakeContext {
	return &fakeContext{sent: make(map[core.EndpointId][]core.Message)}
}

func (f *fakeContext) SendTo(eid core.EndpointId, msg core.Message) *core.Error {
	f.sent[eid] = append(f.sent[eid], msg)
	return nil
}
func (f *fakeContext) RecvFrom(eid core.EndpointId) *core.Error           { return nil }
func (f *fakeContext) CloseEndpoint(eid core.EndpointId) *core.Error      { return nil }
func (f *fakeContext) Connect(url string) (core.EndpointId, *core.Error) { return 0, nil }
func (f *fakeContext) Reconnect(eid core.EndpointId, url string) *core.Error { return nil }
func (f *fakeContext) Bind(url string) (core.EndpointId, *core.Error)    { return 0, nil }
func (f *fakeContext) Rebind(eid core.EndpointId, url string) *core.Error { return nil }
func (f *fakeContext) Schedule(delay time.Duration, payload core.Schedulable) core.Scheduled {
	return 0
}
func (f *fakeContext) Cancel(s core.Scheduled) {}
func (f *fakeContext) Raise(evt core.Event)    {}

func TestSendFansOutToEveryWritablePipe(t *testing.T) {
	p := New()
	ctx := newFakeContext()

	require.Nil(t, p.AddPipe(ctx, 1, nil))
	require.Nil(t, p.AddPipe(ctx, 2, nil))
	require.Nil(t, p.AddPipe(ctx, 3, nil))
	p.OnSendReady(ctx, 1)
	p.OnSendReady(ctx, 2)
	p.OnSendReady(ctx, 3)

	require.Nil(t, p.Send(ctx, core.NewMessage([]byte("topic: hi"))))

	assert.Len(t, ctx.sent, 3)
	for _, msgs := range ctx.sent {
		require.Len(t, msgs, 1)
		assert.Equal(t, []byte("topic: hi"), msgs[0].Body)
	}
}

func TestSendDrainsTheWritableSetUntilReannounced(t *testing.T) {
	p := New()
	ctx := newFakeContext()

	require.Nil(t, p.AddPipe(ctx, 1, nil))
	p.OnSendReady(ctx, 1)

	require.Nil(t, p.Send(ctx, core.NewMessage([]byte("first"))))
	assert.Len(t, ctx.sent[1], 1)

	require.Nil(t, p.Send(ctx, core.NewMessage([]byte("second"))))
	assert.Len(t, ctx.sent[1], 1, "pipe 1 must not receive a message sent before it re-announced readiness")

	p.OnSendAck(ctx, 1)
	require.Nil(t, p.Send(ctx, core.NewMessage([]byte("third"))))
	assert.Len(t, ctx.sent[1], 2, "OnSendAck re-announces readiness, so the next Send reaches pipe 1 again")
}

func TestRecvIsUnsupported(t *testing.T) {
	p := New()
	ctx := newFakeContext()

	_, err := p.Recv(ctx)
	require.Error(t, err)
	assert.Equal(t, core.Other, err.Kind)
}

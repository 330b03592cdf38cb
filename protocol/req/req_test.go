package req

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/npio/scaleproto/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContext struct {
	sent      map[core.EndpointId][]core.Message
	scheduled []core.Schedulable
	cancelled []core.Scheduled
	events    []core.Event
	nextSched core.Scheduled
}

func newFakeContext() *fakeContext {
	return &fakeContext{sent: make(map[core.EndpointId][]core.Message)}
}

func (f *fakeContext) SendTo(eid core.EndpointId, msg core.Message) *core.Error {
	f.sent[eid] = append(f.sent[eid], msg)
	return nil
}
func (f *fakeContext) RecvFrom(eid core.EndpointId) *core.Error         { return nil }
func (f *fakeContext) CloseEndpoint(eid core.EndpointId) *core.Error    { return nil }
func (f *fakeContext) Connect(url string) (core.EndpointId, *core.Error) { return 0, nil }
func (f *fakeContext) Reconnect(eid core.EndpointId, url string) *core.Error { return nil }
func (f *fakeContext) Bind(url string) (core.EndpointId, *core.Error)   { return 0, nil }
func (f *fakeContext) Rebind(eid core.EndpointId, url string) *core.Error { return nil }
func (f *fakeContext) Schedule(delay time.Duration, payload core.Schedulable) core.Scheduled {
	f.scheduled = append(f.scheduled, payload)
	f.nextSched++
	return f.nextSched
}
func (f *fakeContext) Cancel(s core.Scheduled) { f.cancelled = append(f.cancelled, s) }
func (f *fakeContext) Raise(evt core.Event)    { f.events = append(f.events, evt) }

func TestSendPrependsIdToHeader(t *testing.T) {
	p := New()
	ctx := newFakeContext()

	require.Nil(t, p.AddPipe(ctx, 1, nil))
	p.OnSendReady(ctx, 1)

	require.Nil(t, p.Send(ctx, core.NewMessage([]byte("query"))))

	require.Len(t, ctx.sent[1], 1)
	sent := ctx.sent[1][0]
	require.Len(t, sent.Header, 4)
	assert.NotZero(t, binary.BigEndian.Uint32(sent.Header))
	assert.Equal(t, uint8(0x80), sent.Header[0]&0x80)
	assert.Equal(t, []byte("query"), sent.Body)
	require.Len(t, ctx.scheduled, 1)
	assert.IsType(t, core.ReqResendElapsed{}, ctx.scheduled[0])
}

func TestReplyMatchingIdIsDelivered(t *testing.T) {
	p := New().(*Req)
	ctx := newFakeContext()

	require.Nil(t, p.AddPipe(ctx, 1, nil))
	p.OnSendReady(ctx, 1)
	require.Nil(t, p.Send(ctx, core.NewMessage([]byte("query"))))

	var idBytes [4]byte
	binary.BigEndian.PutUint32(idBytes[:], p.curId)
	raw := core.Message{Header: idBytes[:], Body: []byte("answer")}

	p.OnRecvAck(ctx, 1, raw)

	msg, err := p.Recv(ctx)
	require.Nil(t, err)
	assert.Equal(t, []byte("answer"), msg.Body)
	assert.Len(t, ctx.cancelled, 1)
}

func TestReplyWithStaleIdIsIgnored(t *testing.T) {
	p := New().(*Req)
	ctx := newFakeContext()

	require.Nil(t, p.AddPipe(ctx, 1, nil))
	p.OnSendReady(ctx, 1)
	require.Nil(t, p.Send(ctx, core.NewMessage([]byte("query"))))

	var idBytes [4]byte
	binary.BigEndian.PutUint32(idBytes[:], p.curId^0xff)
	raw := core.Message{Header: idBytes[:], Body: []byte("stale")}

	p.OnRecvAck(ctx, 1, raw)

	_, err := p.Recv(ctx)
	require.Error(t, err)
	assert.Equal(t, core.WouldBlock, err.Kind)
}

func TestOnSendAckReactivatesThePipeForASecondSend(t *testing.T) {
	p := New().(*Req)
	ctx := newFakeContext()

	require.Nil(t, p.AddPipe(ctx, 1, nil))
	p.OnSendReady(ctx, 1)
	require.Nil(t, p.Send(ctx, core.NewMessage([]byte("first"))))
	require.Len(t, ctx.sent[1], 1)

	var idBytes [4]byte
	binary.BigEndian.PutUint32(idBytes[:], p.curId)
	p.OnSendAck(ctx, 1)
	p.OnRecvAck(ctx, 1, core.Message{Header: idBytes[:], Body: []byte("first-reply")})
	_, err := p.Recv(ctx)
	require.Nil(t, err)

	require.Nil(t, p.Send(ctx, core.NewMessage([]byte("second"))))
	assert.Len(t, ctx.sent[1], 2, "OnSendAck must reactivate pipe 1 so a second Send can reach it")
}

func TestResendTimeoutRetriesOnReadyPipe(t *testing.T) {
	p := New()
	ctx := newFakeContext()

	require.Nil(t, p.AddPipe(ctx, 1, nil))
	p.OnSendReady(ctx, 1)
	require.Nil(t, p.Send(ctx, core.NewMessage([]byte("query"))))

	p.OnSendReady(ctx, 1)
	p.OnTimeout(ctx, core.ReqResendElapsed{})

	assert.Len(t, ctx.sent[1], 2)
}

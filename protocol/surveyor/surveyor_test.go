package surveyor

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
	cancelled []core.Scheduled
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
	f.nextSched++
	return f.nextSched
}
func (f *fakeContext) Cancel(s core.Scheduled) { f.cancelled = append(f.cancelled, s) }
func (f *fakeContext) Raise(evt core.Event)    {}

func TestSendWithNoRespondentErrors(t *testing.T) {
	p := New()
	ctx := newFakeContext()

	err := p.Send(ctx, core.NewMessage([]byte("survey")))
	require.Error(t, err)
	assert.Equal(t, core.NotConnected, err.Kind)
}

func TestSendBroadcastsToEveryRespondent(t *testing.T) {
	p := New()
	ctx := newFakeContext()

	require.Nil(t, p.AddPipe(ctx, 1, nil))
	require.Nil(t, p.AddPipe(ctx, 2, nil))

	require.Nil(t, p.Send(ctx, core.NewMessage([]byte("survey"))))

	assert.Len(t, ctx.sent[1], 1)
	assert.Len(t, ctx.sent[2], 1)
}

func TestReplyMatchingSurveyIsQueued(t *testing.T) {
	p := New().(*Surveyor)
	ctx := newFakeContext()

	require.Nil(t, p.AddPipe(ctx, 1, nil))
	require.Nil(t, p.Send(ctx, core.NewMessage([]byte("survey"))))

	var idBytes [4]byte
	binary.BigEndian.PutUint32(idBytes[:], p.surveyId)
	raw := core.Message{Header: idBytes[:], Body: []byte("answer")}
	p.OnRecvAck(ctx, 1, raw)

	msg, err := p.Recv(ctx)
	require.Nil(t, err)
	assert.Equal(t, []byte("answer"), msg.Body)
}

func TestDeadlineClearsOutstandingSurvey(t *testing.T) {
	p := New().(*Surveyor)
	ctx := newFakeContext()

	require.Nil(t, p.AddPipe(ctx, 1, nil))
	require.Nil(t, p.Send(ctx, core.NewMessage([]byte("survey"))))
	require.True(t, p.hasSurvey)

	p.OnTimeout(ctx, core.SurveyDeadlineElapsed{})
	assert.False(t, p.hasSurvey)

	var idBytes [4]byte
	binary.BigEndian.PutUint32(idBytes[:], p.surveyId)
	raw := core.Message{Header: idBytes[:], Body: []byte("too-late")}
	p.OnRecvAck(ctx, 1, raw)

	_, err := p.Recv(ctx)
	require.Error(t, err)
	assert.Equal(t, core.TimedOut, err.Kind)
}

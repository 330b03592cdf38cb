// Package surveyor implements the SURVEYOR half of the
// SURVEYOR/RESPONDENT pattern: broadcasting one survey at a time to
// every connected respondent and collecting replies carrying its id
// until a deadline elapses, at which point any reply for that survey
// is no longer accepted.
package surveyor

import (
	"encoding/binary"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	"github.com/npio/scaleproto/core"
	"github.com/npio/scaleproto/core/priolist"
)

// DefaultDeadline is how long a survey accepts replies after being
// sent.
const DefaultDeadline = time.Second

// Surveyor has two independent pieces of state: bc, the broadcast set
// every Send fans out to, and fq, the fair queue Recv fetches
// respondent replies from. At most one survey is outstanding; a
// second Send cancels whatever deadline the first one was running
// against.
type Surveyor struct {
	bc       map[core.EndpointId]struct{}
	fq       *priolist.List
	deadline time.Duration

	idSeq     uint32
	surveyId  uint32
	hasSurvey bool

	deadlineToken core.Scheduled
	hasDeadline   bool

	receiving    bool
	receivingEid core.EndpointId
	// replies buffers accepted responses to the outstanding survey. A
	// survey can draw replies from an arbitrary number of respondents;
	// queue.Queue is the same general-purpose concurrent queue the
	// cloudwatch log facade batches outbound events through, used here
	// single-threaded for its Put/Empty/Poll API. Recv checks Empty
	// before Poll, since Poll with a zero timeout waits for an item.
	replies *queue.Queue
}

// New returns a fresh Surveyor protocol.
func New() core.Protocol {
	return &Surveyor{
		bc:       make(map[core.EndpointId]struct{}),
		fq:       priolist.New(),
		deadline: DefaultDeadline,
		idSeq:    uint32(time.Now().UnixNano()),
		replies:  queue.New(8),
	}
}

func (s *Surveyor) Type() core.SocketType     { return core.Surveyor }
func (s *Surveyor) PeerType() core.SocketType { return core.Respondent }

func (s *Surveyor) AddPipe(ctx core.Context, eid core.EndpointId, pipe core.Pipe) *core.Error {
	s.bc[eid] = struct{}{}
	s.fq.Insert(uint64(eid), priolist.DefaultPriority)
	return nil
}

func (s *Surveyor) RemovePipe(ctx core.Context, eid core.EndpointId) {
	delete(s.bc, eid)
	s.fq.Remove(uint64(eid))
	if s.receiving && s.receivingEid == eid {
		s.receiving = false
	}
}

func (s *Surveyor) OnSendReady(ctx core.Context, eid core.EndpointId) {}

func (s *Surveyor) OnRecvReady(ctx core.Context, eid core.EndpointId) {
	s.fq.Activate(uint64(eid))
	s.pump(ctx)
}

// OnSendNotReady and OnRecvNotReady exist for interface symmetry with
// OnSendReady/OnRecvReady; no transport in this tree raises either one,
// since transports here are completion-based rather than edge-triggered
// poll readiness.
func (s *Surveyor) OnSendNotReady(ctx core.Context, eid core.EndpointId) {}

func (s *Surveyor) OnRecvNotReady(ctx core.Context, eid core.EndpointId) {}

func (s *Surveyor) OnSendAck(ctx core.Context, eid core.EndpointId) {}

func (s *Surveyor) OnRecvAck(ctx core.Context, eid core.EndpointId, msg core.Message) {
	s.receiving = false
	s.fq.Activate(uint64(eid))

	id, body, ok := decode(msg)
	if !ok || !s.hasSurvey || id != s.surveyId {
		s.pump(ctx)
		return
	}

	wasEmpty := s.replies.Empty()
	s.replies.Put(core.Message{Body: body})
	if wasEmpty {
		ctx.Raise(core.CanRecv{Ready: true})
	}
	s.pump(ctx)
}

func (s *Surveyor) OnPipeError(ctx core.Context, eid core.EndpointId, err *core.Error) {}

// Send broadcasts a new survey, discarding replies to any previous
// one.
func (s *Surveyor) Send(ctx core.Context, msg core.Message) *core.Error {
	if len(s.bc) == 0 {
		return core.NewError(core.NotConnected, "no respondent connected")
	}

	s.cancelDeadline(ctx)
	s.replies.Dispose()
	s.replies = queue.New(8)

	s.idSeq++
	s.surveyId = s.idSeq | 0x80000000
	s.hasSurvey = true

	encoded := encode(msg, s.surveyId)
	for eid := range s.bc {
		ctx.SendTo(eid, encoded)
	}

	s.deadlineToken = ctx.Schedule(s.deadline, core.SurveyDeadlineElapsed{})
	s.hasDeadline = true
	return nil
}

func (s *Surveyor) Recv(ctx core.Context) (core.Message, *core.Error) {
	if s.replies.Empty() {
		if !s.hasSurvey {
			return core.Message{}, core.NewError(core.TimedOut, "no survey outstanding")
		}
		s.pump(ctx)
		return core.Message{}, core.NewError(core.WouldBlock, "no survey reply ready")
	}
	items, err := s.replies.Poll(1, 0)
	if err != nil || len(items) == 0 {
		s.pump(ctx)
		return core.Message{}, core.NewError(core.WouldBlock, "no survey reply ready")
	}
	msg := items[0].(core.Message)
	if s.replies.Empty() {
		ctx.Raise(core.CanRecv{Ready: false})
	}
	return msg, nil
}

func (s *Surveyor) OnTimeout(ctx core.Context, payload core.Schedulable) {
	if _, ok := payload.(core.SurveyDeadlineElapsed); !ok {
		return
	}
	s.hasDeadline = false
	s.hasSurvey = false
	// With no reply left to hand out, Recv now fails with TimedOut;
	// raising CanRecv lets a parked Recv retry and return that.
	if s.replies.Empty() {
		ctx.Raise(core.CanRecv{Ready: true})
	}
}

func (s *Surveyor) SetOption(opt core.Option) *core.Error {
	if v, ok := opt.(core.SurveyDeadline); ok {
		s.deadline = time.Duration(v)
		return nil
	}
	return core.NewError(core.InvalidInput, "unsupported option for the surveyor protocol")
}

func (s *Surveyor) GetOption(name string) (interface{}, *core.Error) {
	if name == "survey-deadline" {
		return s.deadline, nil
	}
	return nil, core.NewError(core.InvalidInput, "unknown option %q", name)
}

func (s *Surveyor) Close(ctx core.Context) {
	s.cancelDeadline(ctx)
	s.replies.Dispose()
}

func (s *Surveyor) cancelDeadline(ctx core.Context) {
	if s.hasDeadline {
		ctx.Cancel(s.deadlineToken)
		s.hasDeadline = false
	}
}

func (s *Surveyor) pump(ctx core.Context) {
	if s.receiving {
		return
	}
	eid, ok := s.fq.Pop()
	if !ok {
		return
	}
	s.receiving = true
	s.receivingEid = core.EndpointId(eid)
	if err := ctx.RecvFrom(core.EndpointId(eid)); err != nil {
		s.receiving = false
	}
}

func encode(msg core.Message, id uint32) core.Message {
	var idBytes [4]byte
	binary.BigEndian.PutUint32(idBytes[:], id)
	return msg.WithHeaderPrefix(idBytes[:])
}

// decode reads the survey id a reply is answering off the header,
// where encode placed it, leaving the body untouched.
func decode(raw core.Message) (uint32, []byte, bool) {
	if len(raw.Header) < 4 {
		return 0, nil, false
	}
	return binary.BigEndian.Uint32(raw.Header[:4]), raw.Body, true
}

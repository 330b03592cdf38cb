package facade

import (
	"github.com/npio/scaleproto/core"
	"github.com/npio/scaleproto/protocol/bus"
	"github.com/npio/scaleproto/protocol/pair"
	"github.com/npio/scaleproto/protocol/pairprefetch"
	"github.com/npio/scaleproto/protocol/pub"
	"github.com/npio/scaleproto/protocol/pull"
	"github.com/npio/scaleproto/protocol/push"
	"github.com/npio/scaleproto/protocol/rep"
	"github.com/npio/scaleproto/protocol/req"
	"github.com/npio/scaleproto/protocol/respondent"
	"github.com/npio/scaleproto/protocol/sub"
	"github.com/npio/scaleproto/protocol/surveyor"
)

// RegisterBuiltins registers every protocol this module ships with
// against d, including the device-mode factories for Rep/Respondent.
// A cmd/ binary or test that only needs one or two patterns can skip
// this and call d.Register directly instead.
func RegisterBuiltins(d *core.Dispatcher) {
	d.Register(core.Push, push.New)
	d.Register(core.Pull, pull.New)
	d.Register(core.Pub, pub.New)
	d.Register(core.Sub, sub.New)
	d.Register(core.Req, req.New)
	d.Register(core.BusSocket, bus.New)
	d.Register(core.Pair, pair.New)
	d.Register(core.PairPrefetch, pairprefetch.New)
	d.Register(core.Surveyor, surveyor.New)

	d.Register(core.Rep, func() core.Protocol { return rep.New(false) })
	d.RegisterDevice(core.Rep, func() core.Protocol { return rep.New(true) })
	d.Register(core.Respondent, func() core.Protocol { return respondent.New(false) })
	d.RegisterDevice(core.Respondent, func() core.Protocol { return respondent.New(true) })
}

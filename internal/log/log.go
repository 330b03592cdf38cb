// Package log provides the structured logger used by the reactor and
// the transports; protocol packages do not log. It wraps seelog behind
// a small interface so call sites never depend on the logging backend
// directly.
package log

import (
	"sync"

	"github.com/cihub/seelog"
)

// BasicT is the set of logging operations a component can perform.
// It mirrors seelog.LoggerInterface so a *Wrapper can delegate to it
// directly.
type BasicT interface {
	Tracef(format string, params ...interface{})
	Debugf(format string, params ...interface{})
	Infof(format string, params ...interface{})
	Warnf(format string, params ...interface{}) error
	Errorf(format string, params ...interface{}) error

	Trace(v ...interface{})
	Debug(v ...interface{})
	Info(v ...interface{})
	Warn(v ...interface{}) error
	Error(v ...interface{}) error

	Flush()
}

// T is a BasicT that can also derive a child logger carrying extra
// context, e.g. a socket or endpoint id, on every line it writes.
type T interface {
	BasicT
	WithContext(context ...string) T
}

var (
	defaultOnce   sync.Once
	defaultLogger seelog.LoggerInterface
)

func defaultSeelog() seelog.LoggerInterface {
	defaultOnce.Do(func() {
		logger, err := seelog.LoggerFromConfigAsBytes(defaultConfig)
		if err != nil {
			logger = seelog.Disabled
		}
		defaultLogger = logger
	})
	return defaultLogger
}

// New returns a logger backed by the package's default seelog
// configuration (console output, info level and above).
func New() T {
	return WithContext()
}

// WithContext returns a logger that prefixes every message with the
// given context tokens, e.g. WithContext("socket", "3").
func WithContext(context ...string) T {
	logger := defaultSeelog()
	logger.SetAdditionalStackDepth(2)
	return &Wrapper{
		filter:   contextFilter{context: context},
		delegate: logger,
		mu:       &sync.Mutex{},
	}
}

// defaultConfig is used when no application-provided seelog XML is
// wired in; it mirrors the minimal console sink a library embeds by
// default, leaving richer sinks (files, syslog, CloudWatch) to the
// binary that links this package.
var defaultConfig = []byte(`
<seelog minlevel="info">
	<outputs formatid="main">
		<console/>
	</outputs>
	<formats>
		<format id="main" format="%Date/%Time [%LEVEL] %Msg%n"/>
	</formats>
</seelog>
`)

package core

import "time"

// Option is a socket configuration setting. The concrete types below
// are the closed set a protocol or socket front can type-switch on;
// SetOpt on an unrecognized or unsupported option returns an
// InvalidInput error instead of silently ignoring it.
type Option interface {
	optionName() string
}

type (
	// Linger is stored in the socket's Config; Close does not wait on
	// it and tears the underlying pipes down at once.
	Linger time.Duration
	// SendTimeout bounds how long Send blocks waiting for send-readiness.
	// Zero means return WouldBlock immediately; a negative value blocks
	// indefinitely.
	SendTimeout time.Duration
	// RecvTimeout is SendTimeout's receive-side counterpart.
	RecvTimeout time.Duration
	// SendPriority (1..16, default 8) is validated and stored in the
	// socket's Config; protocols insert every pipe at
	// priolist.DefaultPriority whatever its value.
	SendPriority int
	// RecvPriority is SendPriority's receive-side counterpart.
	RecvPriority int
	// RecvMaxSize (default 1MiB, zero meaning unlimited) is stored in
	// the socket's Config; no transport consults it, so a body of any
	// size is accepted.
	RecvMaxSize uint64
	// RetryIvl (default 100ms) is stored in the socket's Config as the
	// initial reconnect/rebind backoff interval; it is not passed to the
	// transports, which keep their own retry settings.
	RetryIvl time.Duration
	// RetryIvlMax is RetryIvl's cap (zero meaning no growth past
	// RetryIvl); like RetryIvl it is only stored in the socket's Config.
	RetryIvlMax time.Duration
	// TcpNoDelay is stored in the socket's Config; it is not passed to
	// transport/tcp, whose Transport.SetTcpNoDelay sets it directly.
	TcpNoDelay bool
	// Subscribe adds a topic prefix to a Sub socket's accept filter.
	Subscribe []byte
	// Unsubscribe removes a topic prefix from a Sub socket's accept filter.
	Unsubscribe []byte
	// ReqResendIvl is how long Req waits for a reply before resending
	// the pending request to the next ready peer. Default 60s.
	ReqResendIvl time.Duration
	// SurveyDeadline is how long Surveyor waits for respondent replies
	// after broadcasting a survey. Default 1s.
	SurveyDeadline time.Duration
)

func (Linger) optionName() string         { return "linger" }
func (SendTimeout) optionName() string    { return "send-timeout" }
func (RecvTimeout) optionName() string    { return "recv-timeout" }
func (SendPriority) optionName() string   { return "send-priority" }
func (RecvPriority) optionName() string   { return "recv-priority" }
func (RecvMaxSize) optionName() string    { return "recv-max-size" }
func (RetryIvl) optionName() string       { return "retry-ivl" }
func (RetryIvlMax) optionName() string    { return "retry-ivl-max" }
func (TcpNoDelay) optionName() string     { return "tcp-nodelay" }
func (Subscribe) optionName() string      { return "subscribe" }
func (Unsubscribe) optionName() string    { return "unsubscribe" }
func (ReqResendIvl) optionName() string   { return "req-resend-ivl" }
func (SurveyDeadline) optionName() string { return "survey-deadline" }

// Config holds the socket-level options the socket front applies
// itself, as opposed to the protocol-specific ones (Subscribe,
// ReqResendIvl, SurveyDeadline, ...) it forwards to the protocol via
// Protocol.SetOption.
type Config struct {
	Linger         time.Duration
	SendTimeout    time.Duration
	RecvTimeout    time.Duration
	SendPriority   int
	RecvPriority   int
	RecvMaxSize    uint64
	RetryIvl       time.Duration
	RetryIvlMax    time.Duration
	TcpNoDelay     bool
}

// DefaultConfig returns the configuration a newly created socket starts
// with.
func DefaultConfig() Config {
	return Config{
		SendPriority: 8,
		RecvPriority: 8,
		RecvMaxSize:  1 << 20,
		RetryIvl:     100 * time.Millisecond,
	}
}

// Apply mutates c for the options it owns and reports whether opt was
// one of them; the caller forwards anything it reports false for to
// the protocol.
func (c *Config) Apply(opt Option) (handled bool, err *Error) {
	switch v := opt.(type) {
	case Linger:
		c.Linger = time.Duration(v)
	case SendTimeout:
		c.SendTimeout = time.Duration(v)
	case RecvTimeout:
		c.RecvTimeout = time.Duration(v)
	case SendPriority:
		if int(v) < 1 || int(v) > 16 {
			return true, NewError(InvalidInput, "send priority %d out of range 1..16", int(v))
		}
		c.SendPriority = int(v)
	case RecvPriority:
		if int(v) < 1 || int(v) > 16 {
			return true, NewError(InvalidInput, "recv priority %d out of range 1..16", int(v))
		}
		c.RecvPriority = int(v)
	case RecvMaxSize:
		c.RecvMaxSize = uint64(v)
	case RetryIvl:
		c.RetryIvl = time.Duration(v)
	case RetryIvlMax:
		c.RetryIvlMax = time.Duration(v)
	case TcpNoDelay:
		c.TcpNoDelay = bool(v)
	default:
		return false, nil
	}
	return true, nil
}

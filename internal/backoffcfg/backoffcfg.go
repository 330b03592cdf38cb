// Package backoffcfg builds the exponential backoff used to space out
// reconnect and rebind attempts after a transport failure.
package backoffcfg

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Reconnect returns a backoff.BackOff that starts at ivl and doubles on
// every call to NextBackOff, capping at max. When max is zero the
// interval never grows and every call returns ivl, matching a socket
// configured without RetryIvlMax.
//
// RandomizationFactor is pinned at zero: reconnect/rebind scheduling is
// a deterministic doubling per the protocol's retry contract, not a
// jittered client backoff.
func Reconnect(ivl, max time.Duration) backoff.BackOff {
	if ivl <= 0 {
		ivl = 100 * time.Millisecond
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = ivl
	b.Multiplier = 2.0
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0 // never stop retrying on its own

	if max > 0 {
		b.MaxInterval = max
	} else {
		// No configured ceiling: hold the interval constant instead of
		// growing forever, per the "Open Question" decided in DESIGN.md.
		b.MaxInterval = ivl
	}

	b.Reset()
	return b
}

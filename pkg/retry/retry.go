// Package retry implements the bounded retry policy applied to batch
// provider calls. Attempts are strictly sequential: one logical call
// never has two physical attempts in flight.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/glmkit/glmkit/pkg/api"
	"github.com/glmkit/glmkit/pkg/debug"
)

// Policy bounds the retry loop.
type Policy struct {
	// MaxAttempts is the total number of physical attempts, including
	// the first one. Values below 1 behave as 1.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt; doubled
	// after each further failure.
	InitialBackoff time.Duration

	// MaxBackoff caps the growth. 0 means uncapped.
	MaxBackoff time.Duration

	// Jitter adds up to InitialBackoff of random delay per sleep,
	// spreading synchronized clients. Disabled in tests.
	Jitter bool
}

// DefaultPolicy mirrors the adapter defaults: three attempts, 1s initial
// backoff capped at 30s, with jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Jitter:         true,
	}
}

// Retryable reports whether an attempt's failure is worth another
// attempt. Transport errors (no status received) are always retryable;
// request failures consult the wire-format classifier via the error's
// recorded status and body.
type Retryable func(err error) bool

// Do runs fn up to policy.MaxAttempts times, sleeping between attempts,
// and returns fn's first success or the last attempt's error. A
// non-retryable error stops the loop immediately. Context cancellation
// during backoff surfaces ctx.Err().
func Do(ctx context.Context, policy Policy, retryable Retryable, fn func(ctx context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) {
			debug.Log("retry", "fatal error, not retrying", "attempt", attempt, "error", err)
			return lastErr
		}
		if attempt == attempts {
			break
		}

		delay := policy.backoffFor(attempt)
		debug.Log("retry", "transient failure, backing off",
			"attempt", attempt, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

// backoffFor computes the delay after the given failed attempt number
// (1-based): exponential growth from InitialBackoff, capped, plus
// optional jitter.
func (p Policy) backoffFor(attempt int) time.Duration {
	base := p.InitialBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<uint(attempt-1))
	if p.MaxBackoff > 0 && delay > p.MaxBackoff {
		delay = p.MaxBackoff
	}
	if p.Jitter {
		delay += time.Duration(rand.Int63n(int64(base)))
	}
	return delay
}

// TransportOr wraps a (status, body) classifier into a Retryable that
// also accepts transport errors. Retry decisions for request failures
// take the status and body of the failed attempt; errors of any other
// kind are final.
func TransportOr(classify func(status int, body []byte) bool) Retryable {
	return func(err error) bool {
		pe, ok := api.AsProviderError(err)
		if !ok {
			return false
		}
		switch pe.Kind {
		case api.ErrorKindTransport:
			return true
		case api.ErrorKindRequest:
			if pe.Status == 0 {
				// Decode failures have no transient signature.
				return false
			}
			return classify(pe.Status, []byte(pe.Body))
		default:
			return false
		}
	}
}

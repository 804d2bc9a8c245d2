// Package backoff holds the single retry policy used for storage and
// database readiness calls. Oracle calls are not retried here; a failed
// oracle call rotates credentials instead.
package backoff

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

// Policy describes how a failing call is retried.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts uint
	// Delay is the base delay, doubled after every failed attempt.
	Delay time.Duration
	// MaxDelay caps the per-attempt delay. Zero means no cap.
	MaxDelay time.Duration
	// Fixed disables exponential growth and waits Delay every time.
	Fixed bool
	// RetryIf reports whether err is worth another attempt. Nil retries everything.
	RetryIf func(err error) bool
	// Logger receives a debug line per retry. Nil is silent.
	Logger *slog.Logger
}

// Default is used for store writes and reads.
func Default() Policy {
	return Policy{
		Attempts: 4,
		Delay:    100 * time.Millisecond,
		MaxDelay: 2 * time.Second,
	}
}

// Once performs a single attempt.
func Once() Policy {
	return Policy{Attempts: 1}
}

// Poll retries at a fixed interval until timeout elapses.
func Poll(interval, timeout time.Duration) Policy {
	attempts := uint(1)
	if interval > 0 && timeout > interval {
		attempts = uint(timeout / interval)
	}
	return Policy{
		Attempts: attempts,
		Delay:    interval,
		Fixed:    true,
	}
}

// WithRetryIf returns a copy of p that only retries errors accepted by fn.
func (p Policy) WithRetryIf(fn func(err error) bool) Policy {
	p.RetryIf = fn
	return p
}

// WithLogger returns a copy of p that logs retries.
func (p Policy) WithLogger(logger *slog.Logger) Policy {
	p.Logger = logger
	return p
}

// Do runs fn under the policy. The last error is returned unwrapped so
// callers can still match sentinels with errors.Is.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(p.Delay),
		retry.LastErrorOnly(true),
	}
	if p.Fixed {
		opts = append(opts, retry.DelayType(retry.FixedDelay))
	} else {
		opts = append(opts, retry.DelayType(retry.BackOffDelay))
	}
	if p.MaxDelay > 0 {
		opts = append(opts, retry.MaxDelay(p.MaxDelay))
	}
	if p.RetryIf != nil {
		opts = append(opts, retry.RetryIf(p.RetryIf))
	}
	if p.Logger != nil {
		logger := p.Logger
		opts = append(opts, retry.OnRetry(func(n uint, err error) {
			logger.Debug("retrying", "attempt", n+1, "error", err)
		}))
	}

	return retry.Do(fn, opts...)
}

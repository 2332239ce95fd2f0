// Package retry applies a bounded exponential-backoff policy around fallible
// external calls. The policy is an explicit value rather than a loop buried
// in call sites, so the retry boundary can be tested in isolation and every
// vector store operation shares identical semantics.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Default policy values, matching the vector index client defaults.
const (
	// DefaultMaxAttempts is the total number of attempts (first try included).
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the backoff base: attempt n sleeps
	// BaseDelay * 2^(n-1) before attempt n+1.
	DefaultBaseDelay = time.Second
)

// Policy describes how often and how patiently an operation is retried.
// The zero value is unusable; construct with [NewPolicy] or set fields
// explicitly.
type Policy struct {
	// MaxAttempts is the total attempt budget, first try included.
	MaxAttempts int

	// BaseDelay is the backoff base duration.
	BaseDelay time.Duration

	// sleep waits for the given duration or until ctx is done. Tests inject
	// a recording stub; nil means a real timer.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPolicy returns a Policy with the given attempt budget and backoff base,
// substituting defaults for non-positive values.
func NewPolicy(maxAttempts int, baseDelay time.Duration) Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return Policy{MaxAttempts: maxAttempts, BaseDelay: baseDelay}
}

// WithSleep returns a copy of the policy using fn to wait between attempts.
// Intended for tests that must not spend wall-clock time.
func (p Policy) WithSleep(fn func(ctx context.Context, d time.Duration) error) Policy {
	p.sleep = fn
	return p
}

// Do invokes op up to MaxAttempts times, sleeping BaseDelay * 2^(attempt-1)
// between attempts. It returns nil as soon as op succeeds. On exhaustion the
// last error is returned wrapped with the attempt count. Context cancellation
// during a backoff sleep aborts immediately with the context error.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = realSleep
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		delay := base << (attempt - 1)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("retry: %d attempts exhausted: %w", attempts, lastErr)
}

// realSleep blocks for d or until ctx is done.
func realSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

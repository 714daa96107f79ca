// Package retry wraps external calls with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"podcast-brain/pkg/domain"
	"podcast-brain/pkg/logging"
)

// Defaults used by the embedding batcher.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Policy controls how Do retries a call.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int
	// BaseDelay is the wait after the first failure; it doubles per attempt.
	BaseDelay time.Duration
	// Retryable selects which errors are retried. Nil retries only
	// domain.ErrRateLimited.
	Retryable func(error) bool
	// Name labels log lines.
	Name string
}

// DefaultPolicy retries rate-limit errors three times from a one second
// base delay.
func DefaultPolicy(name string) Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Name:        name,
	}
}

func (p Policy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return errors.Is(err, domain.ErrRateLimited)
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out. Exhausted retries return a *domain.RetryableError.
// A cancelled or expired ctx stops the wait and returns an error matching
// domain.ErrDeadline.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", domain.ErrDeadline, ctxErr)
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %v", domain.ErrDeadline, err)
		}
		if !p.retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		logging.Warn("%s: attempt %d/%d failed, retrying in %s: %v", p.Name, attempt, attempts, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", domain.ErrDeadline, ctx.Err())
		case <-timer.C:
		}
		delay *= 2
	}

	return &domain.RetryableError{Attempts: attempts, Err: err}
}

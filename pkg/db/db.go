// Package db holds storage-agnostic pieces shared by the mongo and postgres
// transaction managers.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTransient is returned once a transaction keeps failing with retryable
// errors after every attempt allowed by its RetryPolicy.
var ErrTransient = errors.New("transient storage failure")

// ErrCommitUnknown marks a commit whose result never reached the client. The
// transaction may have applied, so it must not be run again; callers see it
// as ErrTransient.
var ErrCommitUnknown = fmt.Errorf("%w: commit outcome unknown", ErrTransient)

type RetryPolicy struct {
	MaxAttempts    int
	Backoff        time.Duration
	AttemptTimeout time.Duration
}

func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Delay grows linearly with the attempt number.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * p.Backoff
}

// AttemptContext bounds a single attempt by AttemptTimeout without extending
// the caller's own deadline.
func (p RetryPolicy) AttemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.AttemptTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.AttemptTimeout)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry runs fn until it succeeds, returns an error isTransient rejects, the
// caller's context ends, or the policy is exhausted. Exhaustion is reported
// as ErrTransient wrapping the last failure. ErrCommitUnknown is never
// retried.
func Retry(ctx context.Context, p RetryPolicy, isTransient func(error) bool, fn func(ctx context.Context) error) error {
	var lastErr error
	attempts := p.Attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx, cancel := p.AttemptContext(ctx)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrCommitUnknown) || !isTransient(err) {
			return err
		}
		lastErr = err
		if attempt < attempts {
			if err := Sleep(ctx, p.Delay(attempt)); err != nil {
				return err
			}
		}
	}
	return errors.Join(ErrTransient, lastErr)
}

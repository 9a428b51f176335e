// Package retry wraps calls across the automation boundary in a bounded, fixed-backoff loop.
package retry

import (
	"context"
	"time"

	"github.com/joseph-ayodele/unitshift/internal/common"
)

// Policy bounds a retry loop.
type Policy struct {
	Attempts int
	Backoff  time.Duration
}

// Node is the policy for single node operations during a walk.
var Node = Policy{Attempts: 3, Backoff: 3 * time.Second}

// File is the policy for a whole open-walk-save cycle.
var File = Policy{Attempts: 3, Backoff: 3 * time.Second}

// Sleep waits for d or until ctx is done. Tests replace it to avoid real delays.
var Sleep = func(ctx context.Context, d time.Duration) error {
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

// Do calls fn until it succeeds, returns a non-transient fault, or the attempts run out.
// fn receives the 1-based attempt number. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(attempt int) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if !common.IsRetryable(err) || attempt == attempts {
			return err
		}
		if serr := Sleep(ctx, p.Backoff); serr != nil {
			return err
		}
	}
	return err
}

// Value is Do for calls that produce a result.
func Value[T any](ctx context.Context, p Policy, fn func(attempt int) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, func(attempt int) error {
		v, err := fn(attempt)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

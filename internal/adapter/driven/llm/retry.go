package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/chainguard-dev/clog"
)

// RetryPolicy bounds retries of transient provider failures.
type RetryPolicy struct {
	MaxRetries      uint64 // 0 disables retries.
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy suits rate-limit and overload responses, which tend to
// need seconds rather than milliseconds to clear.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      4,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, p.MaxRetries), ctx)
}

// withRetry runs fn until it succeeds, returns a non-retryable error, or the
// policy is exhausted.
func withRetry(ctx context.Context, p RetryPolicy, op string, isRetryable func(error) bool, fn func() (string, error)) (string, error) {
	attempt := 0
	text, err := backoff.RetryNotifyWithData(func() (string, error) {
		attempt++
		out, err := fn()
		if err != nil && !isRetryable(err) {
			return "", backoff.Permanent(err)
		}
		return out, err
	}, p.backOff(ctx), func(err error, wait time.Duration) {
		clog.FromContext(ctx).With("operation", op).
			With("attempt", attempt).
			With("backoff", wait).
			With("error", err.Error()).
			Warn("completion failed, retrying")
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		return "", fmt.Errorf("%s after %d attempt(s): %w", op, attempt, err)
	}
	return text, nil
}

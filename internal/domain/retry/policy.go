// Package retry defines backoff policies for transient store and
// notification failures.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

// Policy defines a retry strategy.
type Policy struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffStrategy BackoffType
	JitterFactor    float64 // 0.0-1.0
}

// BackoffType identifies the backoff strategy.
type BackoffType string

const (
	BackoffFixed       BackoffType = "fixed"
	BackoffLinear      BackoffType = "linear"
	BackoffExponential BackoffType = "exponential"
)

// RefreshPolicy is used by subscribers re-reading state after a trigger.
func RefreshPolicy() Policy {
	return Policy{
		MaxRetries:      2,
		InitialDelay:    200 * time.Millisecond,
		MaxDelay:        2 * time.Second,
		BackoffStrategy: BackoffExponential,
		JitterFactor:    0.2,
	}
}

// DeliveryPolicy is used for outbound deliveries such as alert webhooks.
func DeliveryPolicy() Policy {
	return Policy{
		MaxRetries:      3,
		InitialDelay:    time.Second,
		MaxDelay:        10 * time.Second,
		BackoffStrategy: BackoffExponential,
		JitterFactor:    0.25,
	}
}

// NoRetryPolicy returns a policy that never retries.
func NoRetryPolicy() Policy {
	return Policy{}
}

// CalculateDelay calculates the delay for a given attempt.
func (p Policy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	var delay time.Duration
	switch p.BackoffStrategy {
	case BackoffLinear:
		delay = p.InitialDelay * time.Duration(attempt)
	case BackoffExponential:
		delay = p.InitialDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	default:
		delay = p.InitialDelay
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.JitterFactor > 0 {
		jitter := float64(delay) * p.JitterFactor * (rand.Float64()*2 - 1)
		delay = time.Duration(float64(delay) + jitter)
		if delay < 0 {
			delay = 0
		}
	}

	return delay
}

// IsTransient reports whether err is worth retrying. Caller mistakes and
// tenant violations are permanent.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	platformErr := platformerrors.GetPlatformError(err)
	if platformErr == nil {
		return true
	}
	switch platformErr.Type {
	case platformerrors.ErrorTypeDatabaseError,
		platformerrors.ErrorTypeUnavailable,
		platformerrors.ErrorTypeExternal,
		platformerrors.ErrorTypeInternal:
		return true
	}
	return false
}

// Do runs fn until it succeeds, returns a permanent error, or the policy
// is exhausted.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context, attempt int) error) error {
	_, err := DoWithResult(ctx, policy, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, fn(ctx, attempt)
	})
	return err
}

// DoWithResult runs fn with retries and returns its result.
func DoWithResult[T any](ctx context.Context, policy Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		r, err := fn(ctx, attempt)
		if err == nil {
			return r, nil
		}
		lastErr = err

		if attempt >= policy.MaxRetries || !IsTransient(err) {
			break
		}

		if delay := policy.CalculateDelay(attempt + 1); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return zero, lastErr
}

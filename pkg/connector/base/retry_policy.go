package base

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/ajitpratap0/aribaflow/pkg/config"
	"github.com/ajitpratap0/aribaflow/pkg/errors"
)

// RetryPolicy defines retry behavior with exponential backoff
type RetryPolicy struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RandomizeFactor float64
}

// DefaultRetryPolicy returns a sensible default retry policy
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:     3,
		InitialDelay:    1 * time.Second,
		MaxDelay:        30 * time.Second,
		Multiplier:      2.0,
		RandomizeFactor: 0.1,
	}
}

// NoRetryPolicy returns a policy that doesn't retry
func NoRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 1,
	}
}

// FromConfig builds a retry policy from the connector retry settings.
// The configured count is the number of retries, so total attempts is
// count + 1. Jitter is disabled so wait behavior is predictable when
// the remote service returns explicit reset windows.
func FromConfig(cfg config.RetryConfig) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:     cfg.MaxRetryCount + 1,
		InitialDelay:    cfg.InitialRetryDuration,
		MaxDelay:        cfg.MaxRetryDuration,
		Multiplier:      cfg.RetryMultiplier,
		RandomizeFactor: 0,
	}
}

// Execute runs the given function with retry logic. Non-retryable
// errors abort immediately; retryable errors back off and try again
// until the attempt budget is spent.
func (rp *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	return rp.ExecuteWithCondition(ctx, fn, errors.IsRetryable)
}

// ExecuteWithCondition runs the function with retry logic, using the
// given condition to decide whether an error is worth retrying.
func (rp *RetryPolicy) ExecuteWithCondition(ctx context.Context, fn func() error, shouldRetry func(error) bool) error {
	var lastErr error

	for attempt := 0; attempt < rp.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := rp.calculateDelay(attempt)
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "retry interrupted by context")
			case <-time.After(delay):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !shouldRetry(lastErr) {
			return lastErr
		}
	}

	return errors.Wrap(lastErr, errors.ErrorTypeInternal, "max retry attempts exceeded").
		WithDetail("attempts", rp.MaxAttempts)
}

// calculateDelay computes the delay for a given attempt
func (rp *RetryPolicy) calculateDelay(attempt int) time.Duration {
	delay := float64(rp.InitialDelay) * math.Pow(rp.Multiplier, float64(attempt-1))

	if rp.RandomizeFactor > 0 {
		delta := rp.RandomizeFactor * delay
		delay = delay - delta + rand.Float64()*2*delta
	}

	if delay > float64(rp.MaxDelay) {
		delay = float64(rp.MaxDelay)
	}

	return time.Duration(delay)
}

// GetDelay returns the delay that would be used for the given attempt
func (rp *RetryPolicy) GetDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return rp.calculateDelay(attempt)
}

// Clone returns a copy of the retry policy
func (rp *RetryPolicy) Clone() *RetryPolicy {
	clone := *rp
	return &clone
}

// WithMaxAttempts returns a copy with the given max attempts
func (rp *RetryPolicy) WithMaxAttempts(attempts int) *RetryPolicy {
	clone := rp.Clone()
	clone.MaxAttempts = attempts
	return clone
}

// WithInitialDelay returns a copy with the given initial delay
func (rp *RetryPolicy) WithInitialDelay(delay time.Duration) *RetryPolicy {
	clone := rp.Clone()
	clone.InitialDelay = delay
	return clone
}

// WithMaxDelay returns a copy with the given max delay
func (rp *RetryPolicy) WithMaxDelay(delay time.Duration) *RetryPolicy {
	clone := rp.Clone()
	clone.MaxDelay = delay
	return clone
}

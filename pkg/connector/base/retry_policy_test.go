package base

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/aribaflow/pkg/config"
	"github.com/ajitpratap0/aribaflow/pkg/errors"
)

func fastPolicy(attempts int) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestFromConfig(t *testing.T) {
	rp := FromConfig(config.RetryConfig{
		InitialRetryDuration: 10 * time.Second,
		MaxRetryDuration:     10 * time.Minute,
		MaxRetryCount:        5,
		RetryMultiplier:      2.0,
	})

	// retry count 5 means 6 total attempts
	assert.Equal(t, 6, rp.MaxAttempts)
	assert.Equal(t, 10*time.Second, rp.InitialDelay)
	assert.Equal(t, 10*time.Minute, rp.MaxDelay)
	assert.Equal(t, 2.0, rp.Multiplier)
	assert.Zero(t, rp.RandomizeFactor)
}

func TestRetryPolicy_Execute(t *testing.T) {
	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0
		err := fastPolicy(3).Execute(context.Background(), func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries retryable errors until success", func(t *testing.T) {
		calls := 0
		err := fastPolicy(3).Execute(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New(errors.ErrorTypeRateLimit, "throttled")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("fatal errors abort immediately", func(t *testing.T) {
		calls := 0
		err := fastPolicy(3).Execute(context.Background(), func() error {
			calls++
			return errors.New(errors.ErrorTypeQuota, "day quota exhausted")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.True(t, errors.IsType(err, errors.ErrorTypeQuota))
	})

	t.Run("exhausted attempts wrap the last error", func(t *testing.T) {
		calls := 0
		err := fastPolicy(3).Execute(context.Background(), func() error {
			calls++
			return errors.New(errors.ErrorTypeConnection, "connection reset")
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)

		var typed *errors.Error
		require.ErrorAs(t, err, &typed)
		assert.Equal(t, errors.ErrorTypeInternal, typed.Type)
		assert.Equal(t, 3, typed.Details["attempts"])
	})

	t.Run("context cancellation stops the backoff wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		rp := &RetryPolicy{
			MaxAttempts:  3,
			InitialDelay: time.Hour,
			MaxDelay:     time.Hour,
			Multiplier:   2.0,
		}

		calls := 0
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		err := rp.Execute(ctx, func() error {
			calls++
			return errors.New(errors.ErrorTypeRateLimit, "throttled")
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
	})
}

func TestRetryPolicy_ExecuteWithCondition(t *testing.T) {
	calls := 0
	err := fastPolicy(3).ExecuteWithCondition(context.Background(),
		func() error {
			calls++
			return errors.New(errors.ErrorTypeService, "flaky")
		},
		func(err error) bool { return calls < 2 })

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, errors.IsType(err, errors.ErrorTypeService))
}

func TestRetryPolicy_GetDelay(t *testing.T) {
	rp := &RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     4 * time.Second,
		Multiplier:   2.0,
	}

	assert.Equal(t, time.Duration(0), rp.GetDelay(0))
	assert.Equal(t, time.Second, rp.GetDelay(1))
	assert.Equal(t, 2*time.Second, rp.GetDelay(2))
	assert.Equal(t, 4*time.Second, rp.GetDelay(3))
	// capped at MaxDelay
	assert.Equal(t, 4*time.Second, rp.GetDelay(4))
}

func TestRetryPolicy_Modifiers(t *testing.T) {
	base := DefaultRetryPolicy()
	modified := base.WithMaxAttempts(10).WithInitialDelay(5 * time.Second)

	assert.Equal(t, 3, base.MaxAttempts)
	assert.Equal(t, 10, modified.MaxAttempts)
	assert.Equal(t, 5*time.Second, modified.InitialDelay)
}

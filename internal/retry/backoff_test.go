package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBackoffConfig(t *testing.T) {
	config := DefaultBackoffConfig()
	assert.Equal(t, 100*time.Millisecond, config.InitialDelay)
	assert.Equal(t, 30*time.Second, config.MaxDelay)
	assert.Equal(t, 2.0, config.Multiplier)
	assert.Equal(t, 5, config.MaxAttempts)
	assert.True(t, config.Jitter)
}

func TestRetrySuccessFirstAttempt(t *testing.T) {
	backoff := NewBackoff(BackoffConfig{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  3,
	})

	attempts := 0
	err := backoff.Retry(context.Background(), func() error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetrySuccessAfterFailures(t *testing.T) {
	backoff := NewBackoff(BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  5,
	})

	attempts := 0
	err := backoff.Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient failure")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	backoff := NewBackoff(BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  3,
	})

	attempts := 0
	lastErr := errors.New("persistent failure")
	err := backoff.Retry(context.Background(), func() error {
		attempts++
		return lastErr
	})
	assert.Equal(t, lastErr, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	backoff := NewBackoff(BackoffConfig{
		InitialDelay: time.Hour, // Would block forever without cancellation
		MaxDelay:     time.Hour,
		Multiplier:   2.0,
		MaxAttempts:  5,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := backoff.Retry(ctx, func() error {
		return errors.New("fail into the backoff sleep")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateDelayGrowsAndCaps(t *testing.T) {
	backoff := NewBackoff(BackoffConfig{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  10,
	})

	assert.Equal(t, 10*time.Millisecond, backoff.calculateDelay(1))
	assert.Equal(t, 20*time.Millisecond, backoff.calculateDelay(2))
	assert.Equal(t, 40*time.Millisecond, backoff.calculateDelay(3))
	assert.Equal(t, 50*time.Millisecond, backoff.calculateDelay(4))
	assert.Equal(t, 50*time.Millisecond, backoff.calculateDelay(8))
}

func TestCalculateDelayJitterStaysInBounds(t *testing.T) {
	backoff := NewBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
		Jitter:       true,
	})

	for i := 0; i < 100; i++ {
		delay := backoff.calculateDelay(2)
		// 200ms base with ±25% jitter
		assert.GreaterOrEqual(t, delay, 150*time.Millisecond)
		assert.LessOrEqual(t, delay, 250*time.Millisecond)
	}
}

func TestSecureFloat64Range(t *testing.T) {
	for i := 0; i < 100; i++ {
		val := secureFloat64()
		assert.GreaterOrEqual(t, val, 0.0)
		assert.Less(t, val, 1.0)
	}
}

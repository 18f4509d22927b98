package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxRetries int) *Config {
	return &Config{
		MaxRetries:    maxRetries,
		BackoffFactor: 1.0,
		InitialDelay:  time.Millisecond,
		MaxDelay:      time.Millisecond,
	}
}

func TestRetry_Attempts(t *testing.T) {
	tests := []struct {
		name         string
		maxRetries   int
		failUntil    int
		wantErr      bool
		wantAttempts int
	}{
		{name: "success on first try", maxRetries: 3, failUntil: 0, wantAttempts: 1},
		{name: "success after retries", maxRetries: 3, failUntil: 2, wantAttempts: 3},
		{name: "max retries exceeded", maxRetries: 2, failUntil: 10, wantErr: true, wantAttempts: 3},
		{name: "zero retries", maxRetries: 0, failUntil: 10, wantErr: true, wantAttempts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retrier := NewRetrier(fastConfig(tt.maxRetries))

			attempts := 0
			err := retrier.Do(context.Background(), func() error {
				attempts++
				if attempts <= tt.failUntil {
					return errors.New("temporary error")
				}
				return nil
			})

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantAttempts, attempts)
		})
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	retrier := NewDefaultRetrier()

	err := retrier.Do(ctx, func() error {
		cancel()
		return errors.New("operation error after cancel")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	retrier := NewRetrier(fastConfig(5))
	notFound := errors.New("HTTP 404")

	attempts := 0
	err := retrier.Do(context.Background(), func() error {
		attempts++
		return Permanent(fmt.Errorf("fetch: %w", notFound))
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, notFound)
	assert.Equal(t, 1, attempts)

	var perm *permanentError
	assert.False(t, errors.As(err, &perm), "permanent wrapper must not leak")
}

func TestRetry_Backoff(t *testing.T) {
	config := &Config{
		MaxRetries:    2,
		BackoffFactor: 2.0,
		InitialDelay:  20 * time.Millisecond,
		MaxDelay:      time.Second,
	}
	retrier := NewRetrier(config)

	start := time.Now()
	_ = retrier.Do(context.Background(), func() error { return errors.New("error") })

	// 20ms before the second attempt, 40ms before the third
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestPermanent_Nil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}

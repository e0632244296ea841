package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_SucceedsWithoutRetry(t *testing.T) {
	p := retryPolicy{maxAttempts: 3, backoff: []time.Duration{time.Millisecond}}
	calls := 0
	err := p.run(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_RetriesUntilSuccess(t *testing.T) {
	p := retryPolicy{maxAttempts: 3, backoff: []time.Duration{time.Millisecond, time.Millisecond}}
	calls := 0
	err := p.run(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_ExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	p := retryPolicy{maxAttempts: 2, backoff: []time.Duration{time.Millisecond}}
	calls := 0
	err := p.run(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("permanent")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "permanent", err.Error())
}

func TestRetryPolicy_StopsOnContextCancellation(t *testing.T) {
	p := retryPolicy{maxAttempts: 5, backoff: []time.Duration{50 * time.Millisecond}}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := p.run(ctx, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			cancel()
		}
		return errors.New("fail")
	})
	require.Error(t, err)
	assert.LessOrEqual(t, calls, 2)
}

func TestBackoffFor_ClampsToLastEntry(t *testing.T) {
	p := retryPolicy{maxAttempts: 10, backoff: []time.Duration{time.Second, 2 * time.Second}}
	assert.Equal(t, time.Second, p.backoffFor(1))
	assert.Equal(t, 2*time.Second, p.backoffFor(2))
	assert.Equal(t, 2*time.Second, p.backoffFor(5))
}

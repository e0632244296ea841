package pipeline

import (
	"context"
	"time"
)

// retryPolicy names the attempt cap and per-attempt backoff for one
// pipeline stage, per §4.4's stage table.
type retryPolicy struct {
	maxAttempts int
	backoff     []time.Duration
}

var (
	downloadRetry = retryPolicy{maxAttempts: 3, backoff: []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second}}
	extractRetry  = retryPolicy{maxAttempts: 3, backoff: []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second}}
	chunkRetry    = retryPolicy{maxAttempts: 3, backoff: []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second}}
	embedRetry    = retryPolicy{maxAttempts: 5, backoff: []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second, 120 * time.Second}}
	persistRetry  = retryPolicy{maxAttempts: 3, backoff: []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second}}
)

// backoffFor returns the delay before attempt number attempt (1-indexed
// as "the attempt about to be retried"), clamped to the last configured
// value once attempts exceed the table.
func (p retryPolicy) backoffFor(attempt int) time.Duration {
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.backoff) {
		idx = len(p.backoff) - 1
	}
	return p.backoff[idx]
}

// run executes fn up to p.maxAttempts times, sleeping p.backoffFor
// between attempts, stopping early on ctx cancellation. The last error is
// returned if every attempt fails.
func (p retryPolicy) run(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoffFor(attempt)):
		}
	}
	return lastErr
}

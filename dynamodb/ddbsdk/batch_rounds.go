package ddbsdk

import (
	"context"
	"time"

	"github.com/acksell/dynaplan/dynamodb/retry"
)

const (
	// MaxBatchRounds bounds how often unprocessed keys or items are resubmitted,
	// counting the first request.
	MaxBatchRounds = 5

	maxBatchGetKeys   = 100
	maxBatchWriteReqs = 25
	maxTransactItems  = 100
)

// BackoffFunc returns the duration to wait after the given round (starting at 1).
type BackoffFunc func(round int) time.Duration

// DefaultBackoff waits 50ms*2^(round-1) plus full jitter.
func DefaultBackoff(round int) time.Duration {
	return retry.Backoff(retry.DefaultBaseDelay, round)
}

// NoBackoff resubmits immediately.
func NoBackoff(int) time.Duration { return 0 }

func wait(ctx context.Context, d time.Duration) error {
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

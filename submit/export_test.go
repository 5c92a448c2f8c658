package submit

import (
	"context"
	"time"
)

// Exported aliases for testing internal functions
// from the submit_test package.

// RetryPolicyForTest builds a retry policy with a
// doubling backoff.
func RetryPolicyForTest(
	attempts int,
	callTimeout time.Duration,
	initial time.Duration,
	maxDelay time.Duration,
) retryPolicy {
	return retryPolicy{
		maxAttempts:  attempts,
		callTimeout:  callTimeout,
		initialDelay: initial,
		maxDelay:     maxDelay,
		multiplier:   2,
	}
}

// WithRetryForTest exposes withRetry.
func WithRetryForTest(
	ctx context.Context,
	pol retryPolicy,
	fn func(ctx context.Context) (string, error),
) (string, int, error) {
	return withRetry(ctx, pol, "test", fn)
}

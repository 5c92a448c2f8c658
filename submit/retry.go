package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/byte4ever/vkt/forge"
)

// retryPolicy bounds every remote call of a run.
type retryPolicy struct {
	maxAttempts  int
	callTimeout  time.Duration
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
}

// withRetry runs fn under a per-call timeout and
// retries transient failures (rate limiting, transport
// errors and call timeouts) with exponential backoff.
// A provider retry-after hint replaces the computed
// delay, capped at maxDelay. Cancellation of ctx is
// never retried.
func withRetry[R any](
	ctx context.Context,
	pol retryPolicy,
	op string,
	fn func(ctx context.Context) (R, error),
) (result R, attempts int, finalErr error) {
	delay := pol.initialDelay

	for attempt := 1; attempt <= pol.maxAttempts; attempt++ {
		attempts = attempt

		res, err := callOnce(ctx, pol.callTimeout, op, fn)
		if err == nil {
			return res, attempts, nil
		}

		var zero R

		finalErr = err

		if ctx.Err() != nil || !forge.IsTransient(err) {
			return zero, attempts, finalErr
		}

		if attempt == pol.maxAttempts {
			break
		}

		wait := delay
		if hint, ok := forge.RetryAfter(err); ok {
			wait = hint
		}

		wait = min(wait, pol.maxDelay)

		slog.Warn(
			"retrying forge call",
			"op", op,
			"attempt", attempt,
			"delay", wait,
			"error", err,
		)

		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()

			return zero, attempts, ctx.Err()
		case <-timer.C:
		}

		delay = min(
			time.Duration(float64(delay)*pol.multiplier),
			pol.maxDelay,
		)
	}

	return result, attempts, finalErr
}

func callOnce[R any](
	ctx context.Context,
	timeout time.Duration,
	op string,
	fn func(ctx context.Context) (R, error),
) (R, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := fn(cctx)
	if err == nil {
		return res, nil
	}

	if ctx.Err() == nil &&
		errors.Is(cctx.Err(), context.DeadlineExceeded) &&
		!forge.IsTransient(err) {
		err = &forge.APIError{
			Kind: forge.ErrTransport,
			Message: fmt.Sprintf(
				"%s timed out after %s", op, timeout,
			),
			Err: err,
		}
	}

	return res, err
}

// retryingExister applies the retry policy to the
// conflict checks of the planner.
type retryingExister struct {
	provider forge.Provider
	policy   retryPolicy
}

func (r retryingExister) PathExists(
	ctx context.Context,
	path string,
) (bool, error) {
	ok, _, err := withRetry(
		ctx, r.policy, "path exists",
		func(ctx context.Context) (bool, error) {
			return r.provider.PathExists(ctx, path)
		},
	)

	return ok, err
}

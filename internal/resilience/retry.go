// Package resilience provides the two failure-handling primitives that
// guard fallible operations: a bounded retry executor for transient
// faults and a three-state circuit breaker for repeated failures.
package resilience

import (
	"context"
	"time"

	"github.com/devloophq/devloop/types"
)

// RetryPolicy bounds how a fallible operation is re-attempted.
type RetryPolicy struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	// RetryableCodes is the explicit allow-list of transient error codes.
	// Errors carrying any other code propagate unchanged on first failure.
	RetryableCodes []types.ErrorCode
}

// DefaultRetryPolicy returns the standard policy for persistence calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2,
		RetryableCodes: []types.ErrorCode{
			types.CodeResourceBusy,
			types.CodeNotAvailable,
			types.CodeTooManyFiles,
			types.CodeTimedOut,
		},
	}
}

func (p RetryPolicy) retryable(err error) bool {
	code := types.CodeOf(err)
	for _, allowed := range p.RetryableCodes {
		if code == allowed {
			return true
		}
	}
	return false
}

// Retrier executes operations under a RetryPolicy.
type Retrier struct {
	policy RetryPolicy
	// sleep waits for the backoff delay; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a Retrier. Zero policy fields fall back to defaults.
func NewRetrier(policy RetryPolicy) *Retrier {
	defaults := DefaultRetryPolicy()
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = defaults.MaxAttempts
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = defaults.InitialDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = defaults.MaxDelay
	}
	if policy.BackoffMultiplier < 1 {
		policy.BackoffMultiplier = defaults.BackoffMultiplier
	}
	if policy.RetryableCodes == nil {
		policy.RetryableCodes = defaults.RetryableCodes
	}
	return &Retrier{policy: policy, sleep: sleepContext}
}

// WithSleep overrides the backoff wait. Test hook.
func (r *Retrier) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Retrier {
	r.sleep = sleep
	return r
}

// Do runs op, retrying allow-listed transient failures with capped
// exponential backoff. Non-transient errors and exhaustion propagate the
// operation's error unchanged. Total invocations never exceed MaxAttempts.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	delay := r.policy.InitialDelay
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if attempt >= r.policy.MaxAttempts || !r.policy.retryable(err) {
			return err
		}
		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
		next := time.Duration(float64(delay) * r.policy.BackoffMultiplier)
		if next > r.policy.MaxDelay {
			next = r.policy.MaxDelay
		}
		delay = next
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

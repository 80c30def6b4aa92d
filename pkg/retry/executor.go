package retry

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// Executor runs operations under a retry Policy
type Executor struct {
	policy *Policy
}

// NewExecutor creates an executor for the policy. A nil policy uses the defaults.
func NewExecutor(policy *Policy) *Executor {
	if policy == nil {
		policy = NewPolicy()
	}
	return &Executor{policy: policy}
}

// Policy returns the policy the executor was built with
func (e *Executor) Policy() *Policy {
	return e.policy
}

// Execute runs operation until it succeeds, the attempts are used up,
// the error is not retryable or ctx is done. The last error is returned.
func (e *Executor) Execute(ctx context.Context, operation func() error) error {
	return backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}
		if e.policy.RetryIf != nil && !e.policy.RetryIf(err) {
			return backoff.Permanent(err)
		}
		return err
	}, e.backOff(ctx))
}

func (e *Executor) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = e.policy.InitialInterval
	exp.Multiplier = e.policy.BackoffCoefficient
	exp.MaxInterval = e.policy.MaximumInterval
	exp.MaxElapsedTime = 0
	exp.Reset()

	var b backoff.BackOff = exp
	if e.policy.MaximumAttempts > 0 {
		b = backoff.WithMaxRetries(exp, uint64(e.policy.MaximumAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

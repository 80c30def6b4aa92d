package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastPolicy(opts ...Option) *Policy {
	base := []Option{
		WithInitialInterval(time.Millisecond),
		WithMaximumInterval(2 * time.Millisecond),
	}
	return NewPolicy(append(base, opts...)...)
}

func TestExecuteSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := NewExecutor(fastPolicy(WithMaxAttempts(3))).Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecuteStopsAtMaxAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := NewExecutor(fastPolicy(WithMaxAttempts(2))).Execute(context.Background(), func() error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestExecuteDoesNotRetryRejectedErrors(t *testing.T) {
	calls := 0
	fatal := errors.New("bad request")
	policy := fastPolicy(WithMaxAttempts(5), WithRetryIf(func(err error) bool {
		return !errors.Is(err, fatal)
	}))

	err := NewExecutor(policy).Execute(context.Background(), func() error {
		calls++
		return fatal
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestExecuteHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := NewExecutor(fastPolicy(WithMaxAttempts(10))).Execute(ctx, func() error {
		calls++
		return errors.New("still down")
	})

	assert.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}

func TestNewPolicyDefaults(t *testing.T) {
	p := NewPolicy()
	assert.Equal(t, int32(3), p.MaximumAttempts)
	assert.Equal(t, 2.0, p.BackoffCoefficient)
	assert.Nil(t, p.RetryIf)
}

package retry_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/keybarrier/pkg/keybarrier"
	"github.com/randalmurphal/keybarrier/pkg/keybarrier/retry"
)

var fast = retry.NewConfig(
	retry.WithMaxAttempts(4),
	retry.WithInitialBackoff(time.Millisecond),
	retry.WithMaxBackoff(5*time.Millisecond),
	retry.WithJitter(0),
)

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "transient", retry.CategoryTransient.String())
	assert.Equal(t, "permanent", retry.CategoryPermanent.String())
	assert.Equal(t, "unknown", retry.Category(99).String())
}

func TestCategorize(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want retry.Category
	}{
		{"nil", nil, retry.CategoryPermanent},
		{"unknown", boom, retry.CategoryPermanent},
		{"work failure", &keybarrier.WorkError{Key: "k", Err: boom}, retry.CategoryTransient},
		{"wrapped work failure", fmt.Errorf("provision: %w", &keybarrier.WorkError{Key: "k", Err: boom}), retry.CategoryTransient},
		{"work panic", &keybarrier.WorkError{Key: "k", Err: &keybarrier.PanicError{Value: 1}}, retry.CategoryTransient},
		{"work returned cancellation", &keybarrier.WorkError{Key: "k", Err: context.Canceled}, retry.CategoryPermanent},
		{"lock interrupted", &keybarrier.LockInterruptedError{Key: "k", Cause: context.DeadlineExceeded}, retry.CategoryPermanent},
		{"context cancelled", context.Canceled, retry.CategoryPermanent},
		{"explicit transient", retry.Transient(boom), retry.CategoryTransient},
		{"explicit permanent", retry.Permanent(&keybarrier.WorkError{Err: boom}), retry.CategoryPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retry.Categorize(tt.err))
			assert.Equal(t, tt.want == retry.CategoryTransient, retry.IsRetryable(tt.err))
		})
	}
}

func TestCategorizedError(t *testing.T) {
	boom := errors.New("boom")

	err := &retry.CategorizedError{Err: boom, Category: retry.CategoryTransient, Attempts: 2, Context: "provision"}
	assert.Equal(t, "provision: boom (category: transient, attempts: 2)", err.Error())
	assert.ErrorIs(t, err, boom)

	plain := &retry.CategorizedError{Err: boom, Category: retry.CategoryPermanent, Attempts: 1}
	assert.Equal(t, "boom (category: permanent, attempts: 1)", plain.Error())
}

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds first time", func(t *testing.T) {
		res := retry.Do(ctx, fast, func(context.Context) (int, error) { return 7, nil })
		require.NoError(t, res.Err)
		assert.Equal(t, 7, res.Value)
		assert.Equal(t, 1, res.Attempts)
	})

	t.Run("retries transient errors", func(t *testing.T) {
		calls := 0
		res := retry.Do(ctx, fast, func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", retry.Transient(errors.New("flaky"))
			}
			return "ok", nil
		})
		require.NoError(t, res.Err)
		assert.Equal(t, "ok", res.Value)
		assert.Equal(t, 3, res.Attempts)
	})

	t.Run("stops on permanent errors", func(t *testing.T) {
		calls := 0
		res := retry.Do(ctx, fast, func(context.Context) (int, error) {
			calls++
			return 0, errors.New("bad input")
		})
		require.Error(t, res.Err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, retry.CategoryPermanent, retry.Categorize(res.Err))
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		res := retry.Do(ctx, fast, func(context.Context) (int, error) {
			calls++
			return 0, retry.Transient(errors.New("flaky"))
		})
		assert.Equal(t, 4, calls)
		assert.Equal(t, 4, res.Attempts)
		assert.ErrorContains(t, res.Err, "max attempts exceeded")
	})

	t.Run("zero max attempts runs once", func(t *testing.T) {
		calls := 0
		cfg := fast
		cfg.MaxAttempts = 0
		res := retry.Do(ctx, cfg, func(context.Context) (int, error) {
			calls++
			return 1, nil
		})
		require.NoError(t, res.Err)
		assert.Equal(t, 1, calls)
	})

	t.Run("custom retryable func", func(t *testing.T) {
		calls := 0
		cfg := fast
		cfg.RetryableFunc = func(error) bool { return true }
		res := retry.Do(ctx, cfg, func(context.Context) (int, error) {
			calls++
			return 0, errors.New("anything")
		})
		assert.Error(t, res.Err)
		assert.Equal(t, 4, calls)
	})

	t.Run("cancelled before first attempt", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		res := retry.Do(cctx, fast, func(context.Context) (int, error) {
			t.Error("fn must not run")
			return 0, nil
		})
		assert.ErrorIs(t, res.Err, context.Canceled)
		assert.Equal(t, 0, res.Attempts)
	})

	t.Run("cancelled during backoff", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		slow := retry.NewConfig(retry.WithInitialBackoff(time.Hour), retry.WithJitter(0))
		res := retry.Do(cctx, slow, func(context.Context) (int, error) {
			cancel()
			return 0, retry.Transient(errors.New("flaky"))
		})
		assert.ErrorIs(t, res.Err, context.Canceled)
		assert.ErrorContains(t, res.Err, "during backoff")
		assert.Equal(t, 1, res.Attempts)
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("retries failed work until it completes", func(t *testing.T) {
		b := keybarrier.New[string]()
		var calls atomic.Int32
		res := retry.Run(ctx, b, "key", func(context.Context) error {
			if calls.Add(1) < 3 {
				return errors.New("not yet")
			}
			return nil
		}, fast)

		require.NoError(t, res.Err)
		assert.Equal(t, keybarrier.OutcomeExecuted, res.Outcome)
		assert.Equal(t, 3, res.Attempts)
		assert.True(t, b.Done("key"))
		assert.Equal(t, int64(2), b.Stats().Failed)
	})

	t.Run("completed key is a single fast-path attempt", func(t *testing.T) {
		b := keybarrier.New[string]()
		_, err := b.Run(ctx, "key", func(context.Context) error { return nil })
		require.NoError(t, err)

		res := retry.Run(ctx, b, "key", func(context.Context) error { return nil }, fast)
		require.NoError(t, res.Err)
		assert.Equal(t, keybarrier.OutcomeFastPath, res.Outcome)
		assert.Equal(t, 1, res.Attempts)
	})

	t.Run("exhausted attempts report the last failure", func(t *testing.T) {
		b := keybarrier.New[string]()
		res := retry.Run(ctx, b, "key", func(context.Context) error {
			return errors.New("always")
		}, fast)

		assert.ErrorIs(t, res.Err, keybarrier.ErrWorkFailed)
		assert.Equal(t, keybarrier.OutcomeFailed, res.Outcome)
		assert.Equal(t, 4, res.Attempts)
		assert.False(t, b.Done("key"))
	})

	t.Run("interruption is not retried", func(t *testing.T) {
		b := keybarrier.New[string](keybarrier.WithLockTimeout(10 * time.Millisecond))

		started := make(chan struct{})
		release := make(chan struct{})
		go func() {
			_, _ = b.Run(ctx, "key", func(context.Context) error {
				close(started)
				<-release
				return nil
			})
		}()
		<-started
		defer close(release)

		res := retry.Run(ctx, b, "key", func(context.Context) error { return nil }, fast)
		assert.ErrorIs(t, res.Err, keybarrier.ErrLockInterrupted)
		assert.Equal(t, keybarrier.OutcomeInterrupted, res.Outcome)
		assert.Equal(t, 1, res.Attempts)
	})
}

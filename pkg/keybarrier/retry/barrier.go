package retry

import (
	"context"
	"time"

	"github.com/randalmurphal/keybarrier/pkg/keybarrier"
)

// RunResult describes a retried barrier call.
type RunResult struct {
	// Outcome is the outcome of the last attempt.
	Outcome keybarrier.Outcome

	// Attempts is the number of barrier calls made.
	Attempts int

	// Duration is the total time spent, backoff included.
	Duration time.Duration

	// Err is the final error, a *CategorizedError, or nil.
	Err error
}

// Run calls b.Run for key until the work completes or stops being retryable.
//
// Skips count as success: if another caller finishes key between attempts,
// the next attempt returns OutcomeFastPath and the loop ends.
//
// Example:
//
//	res := retry.Run(ctx, b, "tenant-7", provision, retry.NewConfig(retry.WithMaxAttempts(5)))
//	if res.Err != nil {
//	    return res.Err
//	}
func Run[K comparable](ctx context.Context, b *keybarrier.Barrier[K], key K, work func(context.Context) error, cfg Config) RunResult {
	var last keybarrier.Outcome
	res := Do(ctx, cfg, func(ctx context.Context) (keybarrier.Outcome, error) {
		var err error
		last, err = b.Run(ctx, key, work)
		return last, err
	})

	return RunResult{
		Outcome:  last,
		Attempts: res.Attempts,
		Duration: res.Duration,
		Err:      res.Err,
	}
}

// Package workload drives a Barrier with many concurrent callers and reports
// what each of them did.
//
// Every caller picks a random key, then asks the barrier to run a slow piece
// of work for it. With the defaults, 100 callers share 10 keys: exactly 10
// calls execute the work and the other 90 skip it, and because different
// keys run in parallel the whole run takes about one work duration.
package workload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/keybarrier/pkg/keybarrier"
	"github.com/randalmurphal/keybarrier/pkg/keybarrier/report"
	"github.com/randalmurphal/keybarrier/pkg/keybarrier/retry"
)

// ErrSimulatedFailure is returned by work that was chosen to fail.
var ErrSimulatedFailure = errors.New("simulated work failure")

// WorkFunc is the work a caller runs for key.
type WorkFunc func(ctx context.Context, key string) error

type runOptions struct {
	logger *slog.Logger
	work   WorkFunc
	retry  *retry.Config
}

// Option configures Run.
type Option func(*runOptions)

// WithLogger sets the logger for per-caller traces.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(o *runOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithWork replaces the default work, which sleeps for Config.Work.
// Failure injection still applies before fn is called.
func WithWork(fn WorkFunc) Option {
	return func(o *runOptions) {
		if fn != nil {
			o.work = fn
		}
	}
}

// WithRetryConfig sets the backoff used when Config.Attempts > 1.
// MaxAttempts is always taken from Config.Attempts.
func WithRetryConfig(cfg retry.Config) Option {
	return func(o *runOptions) {
		o.retry = &cfg
	}
}

// Run starts cfg.Callers callers against b and waits for all of them.
//
// The report's outcome counts are the barrier's counters for the duration of
// the run, so b should not serve other traffic meanwhile. With retries
// enabled a caller contributes one call per attempt.
//
// Failed work is counted, not returned. If ctx is cancelled Run still waits
// for every caller, then returns the partial report and ctx's error.
func Run(ctx context.Context, b *keybarrier.Barrier[string], cfg Config, opts ...Option) (*report.Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workload: %w", err)
	}

	o := runOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.work == nil {
		o.work = sleepWork(cfg.Work)
	}
	retryCfg := retry.NewConfig(
		retry.WithInitialBackoff(10*time.Millisecond),
		retry.WithMaxBackoff(time.Second),
	)
	if o.retry != nil {
		retryCfg = *o.retry
	}
	retryCfg.MaxAttempts = max(cfg.Attempts, 1)

	rep := report.New(time.Now())
	rep.Callers = cfg.Callers
	rep.Keys = cfg.Keys
	rep.Work = cfg.Work

	var (
		mu     sync.Mutex
		before = b.Stats()
		start  = time.Now()
	)

	o.logger.Info("workload starting",
		slog.String("run_id", rep.ID),
		slog.Int("callers", cfg.Callers),
		slog.Int("keys", cfg.Keys),
		slog.Duration("work", cfg.Work),
	)

	var g errgroup.Group
	if cfg.Concurrency > 0 {
		g.SetLimit(cfg.Concurrency)
	}

	for i := 0; i < cfg.Callers; i++ {
		c := newCaller(cfg, i)
		g.Go(func() error {
			outcome, err := c.call(ctx, b, o.work, retryCfg)
			logCaller(o.logger, c, outcome, err)

			if outcome == keybarrier.OutcomeExecuted {
				mu.Lock()
				rep.PerKey[c.key]++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	stats := b.Stats().Sub(before)
	rep.Duration = time.Since(start)
	rep.FastPath = int(stats.FastPath)
	rep.RacedAfterLock = int(stats.RacedAfterLock)
	rep.Executed = int(stats.Executed)
	rep.Failed = int(stats.Failed)
	rep.Interrupted = int(stats.Interrupted)
	rep.LockAcquisitions = int(stats.LockAcquisitions)
	rep.StripeEntries = b.Pool().Len()

	o.logger.Info("workload finished",
		slog.String("run_id", rep.ID),
		slog.String("summary", rep.Summary()),
		slog.Duration("duration", rep.Duration),
	)

	if err := ctx.Err(); err != nil {
		return rep, fmt.Errorf("workload interrupted: %w", err)
	}
	return rep, nil
}

// caller is one simulated client. Its random source is private, so key
// choice and failure rolls depend only on the seed and the caller's index.
type caller struct {
	id          string
	key         string
	rng         *rand.Rand
	failureRate float64
}

func newCaller(cfg Config, index int) *caller {
	rng := rand.New(rand.NewPCG(cfg.Seed, uint64(index)))
	return &caller{
		id:          uuid.NewString(),
		key:         strconv.Itoa(rng.IntN(cfg.Keys)),
		rng:         rng,
		failureRate: cfg.FailureRate,
	}
}

func (c *caller) call(ctx context.Context, b *keybarrier.Barrier[string], work WorkFunc, cfg retry.Config) (keybarrier.Outcome, error) {
	// fn only ever runs on this caller's goroutine, so rng needs no lock.
	fn := func(ctx context.Context) error {
		if c.failureRate > 0 && c.rng.Float64() < c.failureRate {
			return ErrSimulatedFailure
		}
		return work(ctx, c.key)
	}

	if cfg.MaxAttempts <= 1 {
		return b.Run(ctx, c.key, fn)
	}
	res := retry.Run(ctx, b, c.key, fn, cfg)
	return res.Outcome, res.Err
}

func logCaller(logger *slog.Logger, c *caller, outcome keybarrier.Outcome, err error) {
	attrs := []any{
		slog.String("caller", c.id),
		slog.String("key", c.key),
		slog.String("outcome", outcome.String()),
	}
	if err != nil {
		logger.Warn("caller finished with error", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	logger.Debug("caller finished", attrs...)
}

// sleepWork returns work that takes d, or less if ctx is cancelled.
func sleepWork(d time.Duration) WorkFunc {
	return func(ctx context.Context, _ string) error {
		if d <= 0 {
			return ctx.Err()
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}

package keybarrier

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/keybarrier/pkg/keybarrier/completion"
	"github.com/randalmurphal/keybarrier/pkg/keybarrier/observability"
	"github.com/randalmurphal/keybarrier/pkg/keybarrier/stripe"
)

// Barrier runs one-time work per key.
//
// A Barrier owns a striped lock pool and a completion registry. Instances are
// independent: two barriers never share locks or completion state.
// Barrier is safe for concurrent use.
type Barrier[K comparable] struct {
	pool     *stripe.Pool[K]
	registry completion.Registry[K]

	logger      *slog.Logger
	metrics     observability.MetricsRecorder
	spans       observability.SpanManager
	lockTimeout time.Duration

	stats  counters
	perKey sync.Map // K -> *atomic.Int64 lock acquisitions
}

// New creates a Barrier for keys of type K.
//
// Example:
//
//	b := keybarrier.New[string](
//	    keybarrier.WithLogger(logger),
//	    keybarrier.WithLockTimeout(10*time.Second),
//	)
func New[K comparable](opts ...Option) *Barrier[K] {
	cfg := defaultBarrierConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Barrier[K]{
		pool:        stripe.New[K](cfg.stripeOpts...),
		registry:    resolveRegistry[K](cfg.registry),
		logger:      cfg.logger,
		metrics:     cfg.metrics,
		spans:       cfg.spans,
		lockTimeout: cfg.lockTimeout,
	}
}

// Run executes work for key unless it has already completed.
//
// The protocol is double-checked:
//  1. If the registry already has key, Run returns OutcomeFastPath without
//     touching any lock.
//  2. Otherwise it waits for key's stripe lock. Waiting honours ctx and the
//     configured lock timeout; giving up returns OutcomeInterrupted and a
//     *LockInterruptedError.
//  3. Holding the lock, it checks the registry again. If another caller
//     finished in the meantime it returns OutcomeRacedAfterLock.
//  4. Otherwise it runs work. On success key is marked done and Run returns
//     OutcomeExecuted. On error or panic key stays unmarked and Run returns
//     OutcomeFailed with a *WorkError, so a later call can try again.
//
// The lock is released on every path. Run never retries on its own.
func (b *Barrier[K]) Run(ctx context.Context, key K, work func(context.Context) error) (Outcome, error) {
	if ctx == nil {
		return OutcomeNone, ErrNilContext
	}
	if work == nil {
		return OutcomeNone, ErrNilWork
	}

	if b.registry.Has(key) {
		b.finish(ctx, OutcomeFastPath)
		observability.LogFastPath(b.logger, key)
		return OutcomeFastPath, nil
	}

	return b.runLocked(ctx, key, work)
}

func (b *Barrier[K]) runLocked(ctx context.Context, key K, work func(context.Context) error) (outcome Outcome, err error) {
	ctx, span := b.spans.StartRunSpan(ctx, key)
	defer func() {
		b.spans.EndRunSpan(span, outcome.String(), err)
	}()

	handle, err := b.acquire(ctx, key)
	if err != nil {
		b.finish(ctx, OutcomeInterrupted)
		return OutcomeInterrupted, err
	}
	defer func() {
		handle.Release()
		observability.LogReleased(b.logger, key)
	}()

	b.stats.lockAcquisitions.Add(1)
	b.keyCounter(key).Add(1)

	if b.registry.Has(key) {
		b.finish(ctx, OutcomeRacedAfterLock)
		observability.LogRacedAfterLock(b.logger, key)
		return OutcomeRacedAfterLock, nil
	}

	start := time.Now()
	workErr := invoke(ctx, work)
	elapsed := time.Since(start)
	b.metrics.RecordWork(ctx, elapsed, workErr)
	durationMs := float64(elapsed.Microseconds()) / 1000

	if workErr != nil {
		b.finish(ctx, OutcomeFailed)
		observability.LogWorkFailed(b.logger, key, workErr, durationMs)
		return OutcomeFailed, &WorkError{Key: key, Err: workErr}
	}

	b.registry.MarkDone(key)
	b.finish(ctx, OutcomeExecuted)
	observability.LogExecuted(b.logger, key, durationMs)
	return OutcomeExecuted, nil
}

// acquire waits for key's stripe lock, bounded by the lock timeout if set.
func (b *Barrier[K]) acquire(ctx context.Context, key K) (*stripe.Handle, error) {
	acquireCtx := ctx
	if b.lockTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, b.lockTimeout)
		defer cancel()
	}

	observability.LogAcquiring(b.logger, key)
	waitDone := observability.TimedOperation()
	start := time.Now()

	handle, err := b.pool.Acquire(acquireCtx, key)
	b.metrics.RecordLockWait(ctx, time.Since(start), err == nil)
	if err != nil {
		ierr := &LockInterruptedError{Key: key, Cause: err}
		observability.LogInterrupted(b.logger, key, ierr)
		return nil, ierr
	}

	observability.LogAcquired(b.logger, key, handle.Stripe(), waitDone())
	b.spans.AddSpanEvent(ctx, "lock.acquired",
		attribute.Int64("stripe", int64(handle.Stripe())),
	)
	return handle, nil
}

func (b *Barrier[K]) finish(ctx context.Context, o Outcome) {
	b.stats.add(o)
	b.metrics.RecordOutcome(ctx, o.String())
}

func (b *Barrier[K]) keyCounter(key K) *atomic.Int64 {
	if v, ok := b.perKey.Load(key); ok {
		return v.(*atomic.Int64)
	}
	v, _ := b.perKey.LoadOrStore(key, new(atomic.Int64))
	return v.(*atomic.Int64)
}

// invoke runs work, converting a panic into a *PanicError.
func invoke(ctx context.Context, work func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()
	return work(ctx)
}

// Do is Run for work that produces a value.
// The value is returned only when this call executed the work successfully;
// every other outcome returns the zero value of T.
//
// Example:
//
//	conn, outcome, err := keybarrier.Do(ctx, b, tenantID, func(ctx context.Context) (*Conn, error) {
//	    return dial(ctx, tenantID)
//	})
func Do[K comparable, T any](ctx context.Context, b *Barrier[K], key K, work func(context.Context) (T, error)) (T, Outcome, error) {
	var result T
	if work == nil {
		return result, OutcomeNone, ErrNilWork
	}

	outcome, err := b.Run(ctx, key, func(ctx context.Context) error {
		v, err := work(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, outcome, err
}

// Done reports whether key's work has completed.
func (b *Barrier[K]) Done(key K) bool {
	return b.registry.Has(key)
}

// Stats returns a snapshot of the barrier's counters.
func (b *Barrier[K]) Stats() Stats {
	return b.stats.snapshot()
}

// LockAcquisitions returns how many calls acquired key's lock.
// Once key is done this number stops growing: later calls take the fast path.
func (b *Barrier[K]) LockAcquisitions(key K) int64 {
	if v, ok := b.perKey.Load(key); ok {
		return v.(*atomic.Int64).Load()
	}
	return 0
}

// Pool returns the barrier's lock pool.
func (b *Barrier[K]) Pool() *stripe.Pool[K] {
	return b.pool
}

// Registry returns the barrier's completion registry.
func (b *Barrier[K]) Registry() completion.Registry[K] {
	return b.registry
}

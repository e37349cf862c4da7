package keybarrier

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/keybarrier/pkg/keybarrier/completion"
	"github.com/randalmurphal/keybarrier/pkg/keybarrier/observability"
	"github.com/randalmurphal/keybarrier/pkg/keybarrier/stripe"
)

// barrierConfig holds Barrier construction settings.
type barrierConfig struct {
	stripeOpts  []stripe.Option
	registry    any
	logger      *slog.Logger
	metrics     observability.MetricsRecorder
	spans       observability.SpanManager
	lockTimeout time.Duration
}

func defaultBarrierConfig() barrierConfig {
	return barrierConfig{
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// Option configures a Barrier.
type Option func(*barrierConfig)

// WithStripes sets the number of lock stripes.
// Default: stripe.DefaultStripes (32768)
//
// Distinct keys that hash to the same stripe serialize behind one lock.
// More stripes reduce such collisions; the table only holds stripes that are
// in use, so a large count costs little memory.
func WithStripes(n int) Option {
	return func(c *barrierConfig) {
		c.stripeOpts = append(c.stripeOpts, stripe.WithStripes(n))
	}
}

// WithHasher sets the key hash used for stripe selection.
// The key type must match the Barrier's; New panics otherwise.
//
// Example:
//
//	b := keybarrier.New[string](keybarrier.WithHasher(stripe.StringHasher))
func WithHasher[K comparable](h func(K) uint64) Option {
	return func(c *barrierConfig) {
		c.stripeOpts = append(c.stripeOpts, stripe.WithHasher(h))
	}
}

// WithRegistry replaces the default completion.Map.
// The key type must match the Barrier's; New panics otherwise.
func WithRegistry[K comparable](r completion.Registry[K]) Option {
	return func(c *barrierConfig) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithLogger sets the logger for per-call diagnostic traces.
// Default: slog.Default(). Branch traces are logged at DEBUG; work failures
// and interrupted acquisitions at WARN.
func WithLogger(logger *slog.Logger) Option {
	return func(c *barrierConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables OpenTelemetry metrics.
// Default: false
//
// Records:
//   - keybarrier.run.outcomes (counter, by outcome)
//   - keybarrier.lock.wait_ms (histogram)
//   - keybarrier.work.latency_ms (histogram)
//   - keybarrier.work.errors (counter)
//
// Metrics use the global OTel meter provider.
func WithMetrics(enabled bool) Option {
	return func(c *barrierConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithMetricsRecorder sets a custom metrics recorder.
func WithMetricsRecorder(m observability.MetricsRecorder) Option {
	return func(c *barrierConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry tracing.
// Default: false
//
// Calls that miss the fast path get a keybarrier.run span carrying the key
// and the outcome. Fast-path calls are not traced. Spans use the global OTel
// tracer provider.
func WithTracing(enabled bool) Option {
	return func(c *barrierConfig) {
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithSpanManager sets a custom span manager.
func WithSpanManager(s observability.SpanManager) Option {
	return func(c *barrierConfig) {
		if s != nil {
			c.spans = s
		}
	}
}

// WithLockTimeout bounds how long a call waits for a key's lock.
// Default: 0 (wait until the caller's context is done)
//
// A call that times out returns a *LockInterruptedError wrapping
// context.DeadlineExceeded; its work does not run and the key is not marked.
// The timeout does not apply to the work itself.
func WithLockTimeout(d time.Duration) Option {
	return func(c *barrierConfig) {
		if d >= 0 {
			c.lockTimeout = d
		}
	}
}

func resolveRegistry[K comparable](r any) completion.Registry[K] {
	if r == nil {
		return completion.NewMap[K]()
	}
	reg, ok := r.(completion.Registry[K])
	if !ok {
		var zero K
		panic(fmt.Sprintf("keybarrier: registry %T does not accept key type %T", r, zero))
	}
	return reg
}

package workload_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/keybarrier/pkg/keybarrier"
	"github.com/randalmurphal/keybarrier/pkg/keybarrier/retry"
	"github.com/randalmurphal/keybarrier/pkg/keybarrier/workload"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func quickConfig() workload.Config {
	cfg := workload.DefaultConfig()
	cfg.Work = 50 * time.Millisecond
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := workload.DefaultConfig()
	assert.Equal(t, 100, cfg.Callers)
	assert.Equal(t, 10, cfg.Keys)
	assert.Equal(t, 5*time.Second, cfg.Work)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*workload.Config)
	}{
		{"no callers", func(c *workload.Config) { c.Callers = 0 }},
		{"no keys", func(c *workload.Config) { c.Keys = 0 }},
		{"negative work", func(c *workload.Config) { c.Work = -time.Second }},
		{"failure rate above one", func(c *workload.Config) { c.FailureRate = 1.5 }},
		{"negative failure rate", func(c *workload.Config) { c.FailureRate = -0.1 }},
		{"negative concurrency", func(c *workload.Config) { c.Concurrency = -1 }},
		{"negative attempts", func(c *workload.Config) { c.Attempts = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := workload.DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	b := keybarrier.New[string]()
	cfg := workload.DefaultConfig()
	cfg.Keys = 0

	rep, err := workload.Run(context.Background(), b, cfg)
	assert.Nil(t, rep)
	assert.ErrorContains(t, err, "invalid workload")
}

// TestRun_DefaultScenario is the canonical run: 100 callers over keys 0-9.
func TestRun_DefaultScenario(t *testing.T) {
	b := keybarrier.New[string]()
	cfg := quickConfig()

	rep, err := workload.Run(context.Background(), b, cfg, workload.WithLogger(discardLogger()))
	require.NoError(t, err)

	// Only keys that were actually drawn can execute.
	drawn := len(rep.PerKey)
	require.Positive(t, drawn)
	assert.LessOrEqual(t, drawn, cfg.Keys)

	assert.Equal(t, cfg.Callers, rep.Calls())
	assert.Equal(t, drawn, rep.Executed)
	assert.Equal(t, cfg.Callers-drawn, rep.Skipped())
	assert.Zero(t, rep.Failed)
	assert.Zero(t, rep.Interrupted)
	for key, n := range rep.PerKey {
		assert.Equal(t, 1, n, "key %s executed more than once", key)
	}

	assert.Equal(t, rep.Executed+rep.RacedAfterLock, rep.LockAcquisitions)
	assert.Zero(t, rep.StripeEntries)
	assert.Less(t, rep.Duration, 5*cfg.Work, "keys should run in parallel, took %v", rep.Duration)
	assert.NotEmpty(t, rep.ID)
}

func TestRun_SeedIsReproducible(t *testing.T) {
	keysFor := func(seed uint64) map[string]int {
		cfg := quickConfig()
		cfg.Work = 0
		cfg.Keys = 1000
		cfg.Seed = seed

		rep, err := workload.Run(context.Background(), keybarrier.New[string](), cfg,
			workload.WithLogger(discardLogger()))
		require.NoError(t, err)
		return rep.PerKey
	}

	assert.Equal(t, keysFor(7), keysFor(7))
	assert.NotEqual(t, keysFor(7), keysFor(8))
}

func TestRun_KeysAreInRange(t *testing.T) {
	var seen sync.Map
	cfg := quickConfig()
	cfg.Keys = 3

	_, err := workload.Run(context.Background(), keybarrier.New[string](), cfg,
		workload.WithLogger(discardLogger()),
		workload.WithWork(func(_ context.Context, key string) error {
			seen.Store(key, true)
			return nil
		}),
	)
	require.NoError(t, err)

	seen.Range(func(k, _ any) bool {
		n, err := strconv.Atoi(k.(string))
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 3)
		return true
	})
}

func TestRun_FailuresAreCounted(t *testing.T) {
	cfg := quickConfig()
	cfg.Work = time.Millisecond
	cfg.FailureRate = 1

	rep, err := workload.Run(context.Background(), keybarrier.New[string](), cfg,
		workload.WithLogger(discardLogger()))
	require.NoError(t, err, "work failures are reported, not returned")

	assert.Equal(t, cfg.Callers, rep.Failed)
	assert.Zero(t, rep.Executed)
	assert.Zero(t, rep.Skipped())
	assert.Empty(t, rep.PerKey)
}

func TestRun_RetriesRecoverFromFailures(t *testing.T) {
	cfg := quickConfig()
	cfg.Callers = 20
	cfg.Keys = 5
	cfg.Work = time.Millisecond
	cfg.Attempts = 50

	var calls atomic.Int32
	rep, err := workload.Run(context.Background(), keybarrier.New[string](), cfg,
		workload.WithLogger(discardLogger()),
		workload.WithRetryConfig(retry.Config{InitialBackoff: time.Millisecond, BackoffFactor: 1}),
		workload.WithWork(func(context.Context, string) error {
			// Every other execution fails.
			if calls.Add(1)%2 == 1 {
				return errors.New("flaky")
			}
			return nil
		}),
	)
	require.NoError(t, err)

	assert.Positive(t, rep.Failed)
	assert.Equal(t, len(rep.PerKey), rep.Executed)
	for _, n := range rep.PerKey {
		assert.Equal(t, 1, n)
	}
}

func TestRun_ConcurrencyLimit(t *testing.T) {
	cfg := quickConfig()
	cfg.Callers = 30
	cfg.Keys = 30
	cfg.Concurrency = 3

	var active, peak atomic.Int32
	_, err := workload.Run(context.Background(), keybarrier.New[string](), cfg,
		workload.WithLogger(discardLogger()),
		workload.WithWork(func(context.Context, string) error {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
			return nil
		}),
	)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRun_Cancelled(t *testing.T) {
	cfg := quickConfig()
	cfg.Work = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	rep, err := workload.Run(ctx, keybarrier.New[string](), cfg, workload.WithLogger(discardLogger()))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotNil(t, rep, "a partial report is returned")

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Zero(t, rep.Executed)
	assert.Equal(t, cfg.Callers, rep.Calls())
	assert.Zero(t, rep.StripeEntries)
}

func TestRun_LogsPerCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := quickConfig()
	cfg.Callers = 5
	cfg.Work = 0

	_, err := workload.Run(context.Background(), keybarrier.New[string](), cfg, workload.WithLogger(logger))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "workload starting")
	assert.Contains(t, out, "workload finished")
	assert.Equal(t, 5, bytes.Count(buf.Bytes(), []byte("msg=\"caller finished\"")))
}

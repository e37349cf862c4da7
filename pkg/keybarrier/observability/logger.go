// Package observability provides logging, metrics, and tracing for keybarrier.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
// Keys are logged and traced with slog.Any / fmt formatting, but never used as
// metric attributes: key spaces are unbounded and would explode cardinality.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds the barrier key to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "user-42")
//	enriched.Info("warming cache") // includes key
func EnrichLogger(logger *slog.Logger, key any) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.Any("key", key))
}

// LogFastPath logs a call that skipped locking because work was already done.
func LogFastPath(logger *slog.Logger, key any) {
	if logger == nil {
		return
	}
	logger.Debug("no lock needed, work already done",
		slog.Any("key", key),
	)
}

// LogAcquiring logs that a caller is about to wait for a key's lock.
func LogAcquiring(logger *slog.Logger, key any) {
	if logger == nil {
		return
	}
	logger.Debug("acquiring lock",
		slog.Any("key", key),
	)
}

// LogAcquired logs a successful lock acquisition and how long it waited.
func LogAcquired(logger *slog.Logger, key any, stripe uint64, waitMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("lock acquired",
		slog.Any("key", key),
		slog.Uint64("stripe", stripe),
		slog.Float64("wait_ms", waitMs),
	)
}

// LogRacedAfterLock logs a caller that got the lock only to find the work done.
func LogRacedAfterLock(logger *slog.Logger, key any) {
	if logger == nil {
		return
	}
	logger.Debug("work completed by another caller while waiting",
		slog.Any("key", key),
	)
}

// LogExecuted logs successful work completion.
func LogExecuted(logger *slog.Logger, key any, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("work completed",
		slog.Any("key", key),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogWorkFailed logs a work failure. The key stays incomplete.
func LogWorkFailed(logger *slog.Logger, key any, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Warn("work failed",
		slog.Any("key", key),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogInterrupted logs a caller that gave up waiting for a lock.
func LogInterrupted(logger *slog.Logger, key any, err error) {
	if logger == nil {
		return
	}
	logger.Warn("lock acquisition interrupted",
		slog.Any("key", key),
		slog.String("error", err.Error()),
	)
}

// LogReleased logs a lock release.
func LogReleased(logger *slog.Logger, key any) {
	if logger == nil {
		return
	}
	logger.Debug("lock released",
		slog.Any("key", key),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}

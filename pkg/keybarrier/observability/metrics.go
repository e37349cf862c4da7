package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records barrier metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordOutcome counts one barrier call by the branch it took.
	RecordOutcome(ctx context.Context, outcome string)

	// RecordLockWait records how long a caller waited for a stripe lock.
	RecordLockWait(ctx context.Context, wait time.Duration, acquired bool)

	// RecordWork records one execution of the guarded work.
	RecordWork(ctx context.Context, duration time.Duration, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	outcomes    metric.Int64Counter
	lockWait    metric.Float64Histogram
	workLatency metric.Float64Histogram
	workErrors  metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("keybarrier")

	outcomes, err := meter.Int64Counter("keybarrier.run.outcomes",
		metric.WithDescription("Number of barrier calls by outcome"),
	)
	if err != nil {
		return nil, err
	}

	lockWait, err := meter.Float64Histogram("keybarrier.lock.wait_ms",
		metric.WithDescription("Time spent waiting for a stripe lock in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	workLatency, err := meter.Float64Histogram("keybarrier.work.latency_ms",
		metric.WithDescription("Guarded work latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	workErrors, err := meter.Int64Counter("keybarrier.work.errors",
		metric.WithDescription("Number of failed guarded work executions"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		outcomes:    outcomes,
		lockWait:    lockWait,
		workLatency: workLatency,
		workErrors:  workErrors,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordOutcome records a barrier call outcome.
func (m *otelMetrics) RecordOutcome(ctx context.Context, outcome string) {
	m.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

// RecordLockWait records a lock wait.
func (m *otelMetrics) RecordLockWait(ctx context.Context, wait time.Duration, acquired bool) {
	m.lockWait.Record(ctx, float64(wait.Microseconds())/1000, metric.WithAttributes(
		attribute.Bool("acquired", acquired),
	))
}

// RecordWork records a work execution.
func (m *otelMetrics) RecordWork(ctx context.Context, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.Bool("success", err == nil),
	}
	m.workLatency.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(attrs...))

	if err != nil {
		m.workErrors.Add(ctx, 1)
	}
}

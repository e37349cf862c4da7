package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordOutcome does nothing.
func (NoopMetrics) RecordOutcome(_ context.Context, _ string) {}

// RecordLockWait does nothing.
func (NoopMetrics) RecordLockWait(_ context.Context, _ time.Duration, _ bool) {}

// RecordWork does nothing.
func (NoopMetrics) RecordWork(_ context.Context, _ time.Duration, _ error) {}

// NoopSpanManager is a SpanManager that does nothing.
// Use when tracing is disabled to avoid overhead.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

// StartRunSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartRunSpan(ctx context.Context, _ any) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndRunSpan does nothing.
func (NoopSpanManager) EndRunSpan(_ trace.Span, _ string, _ error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}

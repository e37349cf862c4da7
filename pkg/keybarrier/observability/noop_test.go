package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordOutcome(ctx, "executed")
		m.RecordLockWait(ctx, time.Millisecond, true)
		m.RecordWork(ctx, time.Millisecond, errors.New("test"))
	})
}

func TestNoopSpanManager(t *testing.T) {
	sm := NoopSpanManager{}
	ctx := context.Background()

	newCtx, span := sm.StartRunSpan(ctx, "key")
	assert.Equal(t, ctx, newCtx, "noop must not wrap the context")
	assert.False(t, span.IsRecording())

	assert.NotPanics(t, func() {
		sm.AddSpanEvent(ctx, "event")
		sm.EndRunSpan(span, "failed", errors.New("test"))
	})
}

package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestNoopLoggerImplementsLogger(t *testing.T) {
	var l Logger = NewNoopLogger()
	ctx := context.Background()
	require.NotPanics(t, func() {
		l.Debug(ctx, "debug", "k", "v")
		l.Info(ctx, "info")
		l.Warn(ctx, "warn", "retryable", true)
		l.Error(ctx, "error", "err", errors.New("boom"))
	})
}

func TestNoopMetricsImplementsMetrics(t *testing.T) {
	var m Metrics = NewNoopMetrics()
	require.NotPanics(t, func() {
		m.IncCounter("steps", 1, "agent", "cortex")
		m.RecordTimer("llm_call", 50*time.Millisecond)
		m.RecordGauge("queue_depth", 3)
	})
}

func TestNoopTracerProducesUsableSpan(t *testing.T) {
	var tr Tracer = NewNoopTracer()
	ctx, span := tr.Start(context.Background(), "do_work")
	require.NotNil(t, ctx)
	require.NotPanics(t, func() {
		span.AddEvent("started")
		span.SetStatus(codes.Ok, "")
		span.RecordError(errors.New("boom"))
		span.End()
	})
}

package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/rulesmith/internal/observability"
)

func newRecordingProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	return tp, recorder
}

func TestFilteringTracerProvider_SuppressesHotTracer(t *testing.T) {
	t.Parallel()

	tp, recorder := newRecordingProvider(t)
	filtered := observability.NewFilteringTracerProvider(tp)

	_, span := filtered.Tracer("rulesmith.tokenizer").Start(context.Background(), "count")
	span.End()

	assert.Empty(t, recorder.Ended(), "tokenizer spans must not be recorded")
}

func TestFilteringTracerProvider_SuppressesHotSpanName(t *testing.T) {
	t.Parallel()

	tp, recorder := newRecordingProvider(t)
	filtered := observability.NewFilteringTracerProvider(tp)

	tracer := filtered.Tracer("rulesmith.compress")

	_, hot := tracer.Start(context.Background(), "rulesmith.compress.file")
	hot.End()

	_, structural := tracer.Start(context.Background(), "rulesmith.compress.codebase")
	structural.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "rulesmith.compress.codebase", ended[0].Name())
}

func TestFilteringTracerProvider_PassesThroughOtherTracers(t *testing.T) {
	t.Parallel()

	tp, recorder := newRecordingProvider(t)
	filtered := observability.NewFilteringTracerProvider(tp)

	_, span := filtered.Tracer("rulesmith.pipeline").Start(context.Background(), "rulesmith.pipeline.run")
	span.End()

	require.Len(t, recorder.Ended(), 1)
}

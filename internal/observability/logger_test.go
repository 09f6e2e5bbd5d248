package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Sumatoshi-tech/rulesmith/internal/observability"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	return record
}

func TestTracingHandler_ServiceAttributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	handler := observability.NewTracingHandler(inner, "rulesmith", observability.ModeCLI)
	logger := slog.New(handler)

	logger.Info("hello")

	record := logLine(t, &buf)
	assert.Equal(t, "rulesmith", record["service"])
	assert.Equal(t, "cli", record["mode"])
}

func TestTracingHandler_MCPMode(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	handler := observability.NewTracingHandler(inner, "rulesmith", observability.ModeMCP)
	slog.New(handler).Info("hello")

	record := logLine(t, &buf)
	assert.Equal(t, "mcp", record["mode"])
}

func TestTracingHandler_InjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	handler := observability.NewTracingHandler(inner, "rulesmith", observability.ModeCLI)
	logger := slog.New(handler)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	logger.InfoContext(ctx, "inside span")

	record := logLine(t, &buf)
	assert.Equal(t, span.SpanContext().TraceID().String(), record["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), record["span_id"])
}

func TestTracingHandler_NoSpanNoTraceAttributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	handler := observability.NewTracingHandler(inner, "rulesmith", observability.ModeCLI)
	slog.New(handler).InfoContext(context.Background(), "outside span")

	record := logLine(t, &buf)
	assert.NotContains(t, record, "trace_id")
	assert.NotContains(t, record, "span_id")
}

func TestTracingHandler_WithGroupKeepsServiceAttrsTopLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	handler := observability.NewTracingHandler(inner, "rulesmith", observability.ModeCLI)
	logger := slog.New(handler).WithGroup("pipeline")

	logger.Info("grouped", "stage", "chunk")

	record := logLine(t, &buf)
	assert.Equal(t, "rulesmith", record["service"])

	group, ok := record["pipeline"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "chunk", group["stage"])
}

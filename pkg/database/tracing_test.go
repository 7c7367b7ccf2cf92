package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	return exporter
}

func spanAttrs(s tracetest.SpanStub) map[string]string {
	attrs := make(map[string]string)
	for _, a := range s.Attributes {
		attrs[string(a.Key)] = a.Value.Emit()
	}
	return attrs
}

func TestTraceOp_Success(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceOp(context.Background(), "redis", "Get", "GET storefront:users")
	end(nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.Get", spans[0].Name)

	attrs := spanAttrs(spans[0])
	assert.Equal(t, "redis", attrs["db.system"])
	assert.Equal(t, "Get", attrs["db.operation"])
	assert.Equal(t, "GET storefront:users", attrs["db.statement"])
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
}

func TestTraceOp_Error(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceOp(context.Background(), "postgresql", "Set", "INSERT INTO kv_entries")
	end(errors.New("connection refused"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.NotEmpty(t, spans[0].Events)
}

func TestSlowOpLogging(t *testing.T) {
	setupTestTracer(t)

	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))
	SetSlowOpLogging(time.Nanosecond, l)
	t.Cleanup(func() { SetSlowOpLogging(0, nil) })

	_, end := TraceOp(context.Background(), "redis", "Get", "GET storefront:cart")
	time.Sleep(time.Millisecond)
	end(nil)

	assert.Contains(t, buf.String(), "slow store operation")
	assert.Contains(t, buf.String(), "GET storefront:cart")
}

func TestSlowOpLogging_Disabled(t *testing.T) {
	setupTestTracer(t)

	var buf bytes.Buffer
	SetSlowOpLogging(0, slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { SetSlowOpLogging(0, nil) })

	_, end := TraceOp(context.Background(), "redis", "Get", "GET storefront:cart")
	end(nil)

	assert.Zero(t, buf.Len())
}

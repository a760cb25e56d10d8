package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

func nopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	SetTracer(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test"))
	t.Cleanup(func() { SetTracer(nil) })
	return recorder
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestSetup_None(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Exporter: ExporterNone}, nopLogger())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_UnsupportedExporter(t *testing.T) {
	_, err := Setup(context.Background(), Config{Exporter: "carrier-pigeon"}, nopLogger())
	require.Error(t, err)
}

func TestSetup_InvalidOTLPProtocol(t *testing.T) {
	_, err := Setup(context.Background(), Config{
		Exporter: ExporterOTLP,
		OTLP:     exporters.OTLPConfig{Endpoint: "localhost:4317", Protocol: "udp"},
	}, nopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported OTLP protocol")
}

func TestStartSpan_WithoutTracer(t *testing.T) {
	SetTracer(nil)
	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()

	assert.NotNil(t, ctx)
	assert.Empty(t, GetTraceID(ctx))
	assert.Nil(t, Propagation(ctx))
}

func TestStartPassSpan(t *testing.T) {
	recorder := recordSpans(t)

	ctx, span := StartPassSpan(context.Background(), "ingest", 1700000000, "run-1")
	assert.NotEmpty(t, GetTraceID(ctx))
	assert.NotEmpty(t, GetSpanID(ctx))
	assert.Contains(t, Propagation(ctx)["traceparent"], GetTraceID(ctx))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "Orchestrator.ingest", ended[0].Name())
	got := attrs(ended[0])
	assert.Equal(t, int64(1700000000), got[CDCKeyKey].AsInt64())
	assert.Equal(t, "run-1", got[RunIDKey].AsString())
	assert.Equal(t, "ingest", got[PassKey].AsString())
}

func TestStartStageLogSpan_Fail(t *testing.T) {
	recorder := recordSpans(t)

	_, opened := StartStageLogSpan(context.Background(), "Open", 0, TableIDKey.Int64(3))
	opened.End()
	_, closed := StartStageLogSpan(context.Background(), "Close", 9)
	Fail(closed, errors.New("forbidden to close"))
	closed.End()

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	_, hasID := attrs(ended[0])[StageLogIDKey]
	assert.False(t, hasID)
	assert.Equal(t, int64(3), attrs(ended[0])[TableIDKey].AsInt64())

	assert.Equal(t, "StageLog.Close", ended[1].Name())
	assert.Equal(t, int64(9), attrs(ended[1])[StageLogIDKey].AsInt64())
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, "forbidden to close", ended[1].Status().Description)
}

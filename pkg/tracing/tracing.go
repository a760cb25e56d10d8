package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys shared by passes, stage logs and their events.
const (
	CDCKeyKey     = attribute.Key("fern.cdc_key")
	RunIDKey      = attribute.Key("fern.run_id")
	PassKey       = attribute.Key("fern.pass")
	StageIDKey    = attribute.Key("fern.stage_id")
	TableIDKey    = attribute.Key("fern.table_id")
	StageLogIDKey = attribute.Key("fern.stage_log_id")
)

var tracer trace.Tracer

// SetTracer sets the package tracer. A nil tracer turns StartSpan into a
// pass-through.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// StartSpan starts a span named name carrying attrs.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartPassSpan starts the root span of a promotion pass.
func StartPassSpan(ctx context.Context, kind string, cdcKey int64, runID string) (context.Context, trace.Span) {
	return StartSpan(ctx, "Orchestrator."+kind,
		PassKey.String(kind),
		CDCKeyKey.Int64(cdcKey),
		RunIDKey.String(runID),
	)
}

// StartStageLogSpan starts a span for a transition of stage log id. Open has
// no id yet and passes 0.
func StartStageLogSpan(ctx context.Context, op string, id int64, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if id != 0 {
		attrs = append(attrs, StageLogIDKey.Int64(id))
	}
	return StartSpan(ctx, "StageLog."+op, attrs...)
}

// Fail marks span as failed with err.
func Fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func activeSpanContext(ctx context.Context) (trace.SpanContext, bool) {
	if tracer == nil {
		return trace.SpanContext{}, false
	}
	sc := trace.SpanContextFromContext(ctx)
	return sc, sc.IsValid()
}

// GetTraceID returns the trace id of the active span, or "".
func GetTraceID(ctx context.Context) string {
	sc, ok := activeSpanContext(ctx)
	if !ok {
		return ""
	}
	return sc.TraceID().String()
}

// GetSpanID returns the span id of the active span, or "".
func GetSpanID(ctx context.Context) string {
	sc, ok := activeSpanContext(ctx)
	if !ok {
		return ""
	}
	return sc.SpanID().String()
}

// Propagation returns the W3C traceparent and tracestate headers of the
// active span, for stage log events consumed outside the process. It is
// empty when nothing is being traced.
func Propagation(ctx context.Context) map[string]string {
	if _, ok := activeSpanContext(ctx); !ok {
		return nil
	}
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	return carrier
}

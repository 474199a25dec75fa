package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/text-mesh/text-mesh"

// otelSpanWrapper wraps an OpenTelemetry span to implement the Span interface
type otelSpanWrapper struct {
	span trace.Span
}

// End implements Span.End
func (o *otelSpanWrapper) End() {
	o.span.End()
}

// SetAttribute implements Span.SetAttribute
func (o *otelSpanWrapper) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		o.span.SetAttributes(attribute.String(key, v))
	case int:
		o.span.SetAttributes(attribute.Int(key, v))
	case int64:
		o.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		o.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		o.span.SetAttributes(attribute.Bool(key, v))
	default:
		o.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

// RecordError implements Span.RecordError
func (o *otelSpanWrapper) RecordError(err error) {
	o.span.RecordError(err)
}

// SpanContext implements Span.SpanContext
func (o *otelSpanWrapper) SpanContext() trace.SpanContext {
	return o.span.SpanContext()
}

// StartSpan starts a new span using the globally registered tracer provider.
// When no provider is installed the span is a no-op, so library code can call
// this unconditionally.
func StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, otelSpan := otel.Tracer(tracerName).Start(ctx, name)
	return ctx, &otelSpanWrapper{span: otelSpan}
}

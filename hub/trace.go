package hub

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracing wraps the hub's tracer with span helpers for the message and
// handoff operations. Spans are no-ops unless the embedding process has
// installed a tracer provider.
type tracing struct {
	tracer  trace.Tracer
	hubName string
}

func newTracing(hubName string) *tracing {
	return &tracing{
		tracer:  otel.Tracer(meterName),
		hubName: hubName,
	}
}

func (t *tracing) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("hub.name", t.hubName))
	return t.tracer.Start(ctx, operation, trace.WithAttributes(attrs...))
}

func (t *tracing) recordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func messageAttributes(msg *Message) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("message.id", msg.ID),
		attribute.String("message.type", string(msg.Type)),
		attribute.String("message.from", msg.From),
		attribute.String("message.to", msg.To),
		attribute.String("message.priority", string(msg.Priority)),
		attribute.Bool("message.requires_response", msg.RequiresResponse),
	}
}

func handoffAttributes(ho *Handoff) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("handoff.id", ho.ID),
		attribute.String("handoff.from", ho.From),
		attribute.String("handoff.to", ho.To),
		attribute.String("handoff.status", string(ho.Status)),
	}
}

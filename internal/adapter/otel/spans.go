package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "eventcore"

// StartPublishSpan starts a producer span for one event.
func StartPublishSpan(ctx context.Context, subject, eventID, correlationID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "publish "+subject,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination", subject),
			attribute.String("messaging.message.id", eventID),
			attribute.String("event.correlation_id", correlationID),
		),
	)
}

// StartHandleSpan starts a consumer span for one delivery.
func StartHandleSpan(ctx context.Context, subject, consumer string, attempt uint64) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "handle "+subject,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination", subject),
			attribute.String("messaging.consumer", consumer),
			attribute.Int64("messaging.delivery_attempt", int64(attempt)),
		),
	)
}

// EndSpan records err on span (if any) and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// WithDBSpan wraps a MongoDB operation in a client span.
// Works against the global tracer provider even when tracing is disabled.
func WithDBSpan(ctx context.Context, collection, operation string, fn func(context.Context) error) error {
	tracer := otel.Tracer("voice-agent")

	spanName := fmt.Sprintf("db.%s", operation)
	spanCtx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemKey.String("mongodb"),
			semconv.DBOperationKey.String(operation),
			attribute.String("db.collection", collection),
		),
	)
	defer span.End()

	err := fn(spanCtx)

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(
			attribute.Bool("db.error", true),
			attribute.String("db.error.message", err.Error()),
		)
	} else {
		span.SetAttributes(attribute.Bool("db.error", false))
	}

	return err
}

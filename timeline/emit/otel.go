package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each event into a zero-duration OpenTelemetry span,
// named after its Kind, with node ID/label/frame and Meta as attributes.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter returns an OTelEmitter using tracer, typically obtained via
// otel.Tracer("arborio/timeline").
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), string(event.Kind))
	defer span.End()
	o.annotate(span, event)
}

func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		_, span := o.tracer.Start(ctx, string(event.Kind))
		o.annotate(span, event)
		span.End()
	}
	return nil
}

// Flush force-flushes the global tracer provider, if it supports it.
func (o *OTelEmitter) Flush(ctx context.Context) error {
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := otel.GetTracerProvider().(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (o *OTelEmitter) annotate(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.Int64("timeline.node_id", int64(event.NodeID)),
		attribute.String("timeline.label", event.Label),
		attribute.Int("timeline.frame", event.Frame),
	)
	for key, value := range event.Meta {
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(key, v))
		case int:
			span.SetAttributes(attribute.Int(key, v))
		case int64:
			span.SetAttributes(attribute.Int64(key, v))
		case float64:
			span.SetAttributes(attribute.Float64(key, v))
		case bool:
			span.SetAttributes(attribute.Bool(key, v))
		default:
			span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
		}
	}
	if event.Kind == KindUserFailure {
		msg := fmt.Sprintf("%v", event.Meta["recovered"])
		span.SetStatus(codes.Error, msg)
		span.RecordError(fmt.Errorf("%s", msg))
	}
}

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan starts a span for a service operation.
//
//	ctx, span := telemetry.StartSpan(ctx, "eventhive/services/attendance", "attendance.Register",
//	    attribute.Int64(telemetry.AttrEventID, eventID),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records err on the span and marks it failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds a business event such as "registration.created" to the span.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Span attribute keys
const (
	AttrUserID    = "user.id"
	AttrUserRole  = "user.role"
	AttrEventID   = "event.id"
	AttrOutcome   = "attendance.outcome"
	AttrAction    = "policy.action"
	AttrAllowed   = "policy.allowed"
	AttrFilter    = "event.filter"
	AttrDashboard = "dashboard.kind"
)

package ygggo_mysqlpool

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName    = "github.com/yggai/ygggo_mysqlpool"
	instrumentationVersion = "v0.1.0"
)

// EnableTelemetry enables or disables OpenTelemetry tracing for this manager.
// Spans go to the global tracer provider.
func (m *Manager) EnableTelemetry(enabled bool) {
	if m == nil { return }
	m.telemetryEnabled = enabled
}

// startSpan creates a new span with common database attributes
func (m *Manager) startSpan(ctx context.Context, operation, query, id string) (context.Context, trace.Span) {
	if m == nil || !m.telemetryEnabled {
		return ctx, trace.SpanFromContext(ctx)
	}

	tracer := otel.Tracer(instrumentationName, trace.WithInstrumentationVersion(instrumentationVersion))
	ctx, span := tracer.Start(ctx, fmt.Sprintf("ygggo_mysqlpool.%s", operation),
		trace.WithSpanKind(trace.SpanKindClient))

	span.SetAttributes(
		attribute.String("db.system", "mysql"),
		attribute.String("db.operation", operation),
		attribute.String("db.query_id", id),
	)
	if m.cfg.Database != "" {
		span.SetAttributes(attribute.String("db.name", m.cfg.Database))
	}
	if query != "" {
		span.SetAttributes(attribute.String("db.statement", query))
	}
	return ctx, span
}

// finishSpan completes a span with error handling
func (m *Manager) finishSpan(span trace.Span, err error) {
	if m == nil || !m.telemetryEnabled { return }

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if kind := Classify(err); kind != UnknownFailure {
			span.SetAttributes(attribute.String("error.kind", kind.String()))
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

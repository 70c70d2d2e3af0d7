package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "jan-server/archive-api"

// GetTracer returns the tracer for the archive service.
func GetTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// ImportAttributes returns common attributes for import run spans.
func ImportAttributes(importID, accountName string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("import.id", importID),
		attribute.String("import.account_name", accountName),
	}
}

// StartImportSpan starts the span covering one archive run.
func StartImportSpan(ctx context.Context, importID, accountName string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "import.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(ImportAttributes(importID, accountName)...),
	)
}

// StartLoadSpan starts a span for loading one payload file.
func StartLoadSpan(ctx context.Context, importID, kind, file string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "import.load."+kind,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("import.id", importID),
			attribute.String("load.kind", kind),
			attribute.String("load.file", file),
		),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error, severity string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("error.severity", severity))
}

// AddStateTransition adds a state transition event to a span.
func AddStateTransition(span trace.Span, fromState, toState string) {
	span.AddEvent("state.transition",
		trace.WithAttributes(
			attribute.String("state.from", fromState),
			attribute.String("state.to", toState),
		),
	)
}

// AddLoadResult records the counts of a finished payload.
func AddLoadResult(span trace.Span, loaded, duplicates, skipped int) {
	span.SetAttributes(
		attribute.Int("load.loaded", loaded),
		attribute.Int("load.duplicates", duplicates),
		attribute.Int("load.skipped", skipped),
	)
}

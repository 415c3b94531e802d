package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span and attribute names.
const (
	SpanRun    = "wavecut.run"
	SpanEvent  = "wavecut.event"
	SpanFetch  = "wavecut.fetch"
	SpanSelect = "wavecut.select"
	SpanWrite  = "wavecut.write"
	SpanPurge  = "wavecut.purge"

	AttrRunID    = attribute.Key("wavecut.run_id")
	AttrEventKey = attribute.Key("wavecut.event.key")
	AttrDay      = attribute.Key("wavecut.event.day")
	AttrYear     = attribute.Key("wavecut.event.year")
	AttrOutcome  = attribute.Key("wavecut.event.outcome")
	AttrTraces   = attribute.Key("wavecut.traces")
	AttrFiles    = attribute.Key("wavecut.files")
	AttrSkipped  = attribute.Key("wavecut.files.unreadable")
	AttrArtifact = attribute.Key("wavecut.artifact")
)

// Start opens a child span of whatever span ctx carries.
func Start(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

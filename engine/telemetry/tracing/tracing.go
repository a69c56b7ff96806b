// Package tracing wraps go.opentelemetry.io/otel/trace behind the same
// Tracer/Span contract used internally for local correlation, so a single
// ingest or ingest_test call produces one span regardless of which backend
// is wired at startup.
package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Span is a single unit of traced work: one orchestrator ingest call, one
// tester ingest_test call, or a sub-step an internal package wants surfaced.
type Span interface {
	End()
	SetAttribute(key string, value any)
	Context() SpanContext
	IsEnded() bool
}

// SpanContext carries the correlation identifiers a Span produced, in the
// hex string form the logging package injects into log records.
type SpanContext struct {
	TraceID, SpanID, ParentSpanID string
	Start, End                    time.Time
}

// Tracer starts spans against whichever backend it was constructed with.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	Noop() bool
}

type noopTracer struct{}
type noopSpan struct{}

func (noopTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, noopSpan{}
}
func (noopTracer) Noop() bool                             { return true }
func (noopSpan) End()                                     {}
func (noopSpan) SetAttribute(key string, value any)       {}
func (noopSpan) Context() SpanContext                     { return SpanContext{} }
func (noopSpan) IsEnded() bool                             { return true }

// otelTracer adapts an otel TracerProvider's Tracer to the Span/Tracer
// contract above. NewTracer(false) returns noopTracer instead, so no
// TracerProvider is needed when tracing is disabled.
type otelTracer struct {
	tracer oteltrace.Tracer
}

// NewTracer builds a Tracer. When enabled, spans are created through a
// fresh otel/sdk TracerProvider with no exporter attached (the global
// TracerProvider is not consulted); when disabled it is a noop.
func NewTracer(enabled bool) Tracer {
	if !enabled {
		return noopTracer{}
	}
	return otelTracer{tracer: sdktrace.NewTracerProvider().Tracer("routingcore")}
}

// NewTracerFromProvider builds a Tracer against an explicit TracerProvider,
// the form the orchestrator uses once the operator wires up otel/sdk.
func NewTracerFromProvider(p oteltrace.TracerProvider) Tracer {
	if p == nil {
		return noopTracer{}
	}
	return otelTracer{tracer: p.Tracer("routingcore")}
}

func (t otelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	spanCtx, span := t.tracer.Start(ctx, name)
	return spanCtx, &otelSpan{span: span, start: time.Now()}
}

func (t otelTracer) Noop() bool { return false }

type otelSpan struct {
	span  oteltrace.Span
	start time.Time
	end   time.Time
	ended bool
}

func (s *otelSpan) End() {
	if s.ended {
		return
	}
	s.end = time.Now()
	s.ended = true
	s.span.End()
}

func (s *otelSpan) SetAttribute(key string, value any) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmtAny(v)))
	}
}

func (s *otelSpan) Context() SpanContext {
	sc := s.span.SpanContext()
	var parent string
	return SpanContext{
		TraceID:       sc.TraceID().String(),
		SpanID:        sc.SpanID().String(),
		ParentSpanID:  parent,
		Start:         s.start,
		End:           s.end,
	}
}

func (s *otelSpan) IsEnded() bool { return s.ended }

func fmtAny(v any) string {
	if s, ok := v.(fmtStringer); ok {
		return s.String()
	}
	return "unsupported-attribute"
}

type fmtStringer interface{ String() string }

// ExtractIDs returns the active span's correlation IDs, or zero values
// if ctx carries none — used by the logging package to tag log records.
func ExtractIDs(ctx context.Context) (traceID, spanID string) {
	sc := oteltrace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}

package tracing

import (
	"context"
	"testing"
	"time"
)

func TestNoopTracer(t *testing.T) {
	tr := NewTracer(false)
	if !tr.Noop() {
		t.Fatalf("expected noop")
	}
	ctx, sp := tr.StartSpan(context.Background(), "noop")
	if ctx == nil || sp == nil {
		t.Fatalf("expected span and ctx")
	}
	sp.End()
	if !sp.IsEnded() {
		t.Fatalf("expected span ended")
	}
}

func TestOTelTracerProducesCorrelationIDs(t *testing.T) {
	tr := NewTracer(true)
	if tr.Noop() {
		t.Fatalf("should be enabled")
	}
	ctx, span := tr.StartSpan(context.Background(), "ingest")
	if span.Context().TraceID == "" || span.Context().SpanID == "" {
		t.Fatalf("missing correlation ids")
	}
	traceID, spanID := ExtractIDs(ctx)
	if traceID != span.Context().TraceID || spanID != span.Context().SpanID {
		t.Fatalf("ExtractIDs mismatch: got %s/%s want %s/%s", traceID, spanID, span.Context().TraceID, span.Context().SpanID)
	}
	span.End()
}

func TestSpanAttributes(t *testing.T) {
	tr := NewTracer(true)
	_, sp := tr.StartSpan(context.Background(), "work")
	sp.SetAttribute("stage", "ingest")
	sp.SetAttribute("matched", true)
	sp.End()
	if !sp.IsEnded() {
		t.Fatalf("span should be ended")
	}
}

func TestSpanTimingOrder(t *testing.T) {
	tr := NewTracer(true)
	_, sp := tr.StartSpan(context.Background(), "timing")
	time.Sleep(5 * time.Millisecond)
	sp.End()
	if sp.Context().End.Before(sp.Context().Start) {
		t.Fatalf("end before start")
	}
}

func TestExtractIDsWithoutSpan(t *testing.T) {
	traceID, spanID := ExtractIDs(context.Background())
	if traceID != "" || spanID != "" {
		t.Fatalf("expected empty correlation ids without an active span")
	}
}

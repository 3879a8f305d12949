package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setupRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(trace.NewNoopTracerProvider())
	})
	return recorder
}

func TestHTTPMiddlewareCreatesServerSpan(t *testing.T) {
	recorder := setupRecorder(t)

	var sawValidSpan bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if trace.SpanContextFromContext(r.Context()).IsValid() {
			sawValidSpan = true
		}
		w.WriteHeader(http.StatusAccepted)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/reports", nil)
	w := httptest.NewRecorder()
	HTTPMiddleware("denuncias")(inner).ServeHTTP(w, req)

	if !sawValidSpan {
		t.Error("handler did not receive a valid span context")
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	span := spans[0]
	if span.Name() != "POST /api/reports" {
		t.Errorf("unexpected span name: %s", span.Name())
	}
	if span.SpanKind() != trace.SpanKindServer {
		t.Errorf("expected server span kind, got %v", span.SpanKind())
	}

	var status int64
	for _, attr := range span.Attributes() {
		if attr.Key == "http.status_code" {
			status = attr.Value.AsInt64()
		}
	}
	if status != http.StatusAccepted {
		t.Errorf("expected http.status_code 202, got %d", status)
	}
}

func TestHTTPMiddlewarePropagatesIncomingTraceContext(t *testing.T) {
	recorder := setupRecorder(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	// W3C traceparent: version-traceid-spanid-flags
	const incomingTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("traceparent", "00-"+incomingTraceID+"-00f067aa0ba902b7-01")

	w := httptest.NewRecorder()
	HTTPMiddleware("denuncias")(inner).ServeHTTP(w, req)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := spans[0].SpanContext().TraceID().String(); got != incomingTraceID {
		t.Errorf("span did not join incoming trace: got %s, want %s", got, incomingTraceID)
	}
}

func TestSetSpanAttributes(t *testing.T) {
	recorder := setupRecorder(t)

	ctx, span := otel.Tracer("test").Start(context.Background(), "test-op")
	SetSpanAttributes(ctx, attribute.String("folio", "DEN_ABC123"), attribute.Int("mensaje.longitud", 42))
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	found := map[string]bool{}
	for _, attr := range spans[0].Attributes() {
		found[string(attr.Key)] = true
	}
	if !found["folio"] || !found["mensaje.longitud"] {
		t.Errorf("expected folio and mensaje.longitud attributes, got %v", found)
	}
}

func TestSetSpanAttributesNoSpan(t *testing.T) {
	// Must not panic without an active span.
	SetSpanAttributes(context.Background(), attribute.String("folio", "DEN_ABC123"))
}

func TestTraceAndSpanIDFromContext(t *testing.T) {
	setupRecorder(t)

	if id := TraceIDFromContext(context.Background()); id != "" {
		t.Errorf("expected empty trace ID without a span, got %q", id)
	}
	if id := SpanIDFromContext(context.Background()); id != "" {
		t.Errorf("expected empty span ID without a span, got %q", id)
	}

	ctx, span := otel.Tracer("test").Start(context.Background(), "test-op")
	defer span.End()

	spanCtx := span.SpanContext()
	if got := TraceIDFromContext(ctx); got != spanCtx.TraceID().String() {
		t.Errorf("TraceIDFromContext = %s, want %s", got, spanCtx.TraceID().String())
	}
	if got := SpanIDFromContext(ctx); got != spanCtx.SpanID().String() {
		t.Errorf("SpanIDFromContext = %s, want %s", got, spanCtx.SpanID().String())
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zombar/denuncias/pkg/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestCreateReportTracing tests that intake requests produce a server span
// carrying the folio
func TestCreateReportTracing(t *testing.T) {
	// Setup trace exporter
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	otel.SetTracerProvider(tp)

	// Setup handler behind the tracing middleware, the way main wires it
	handler, _, _, cleanup := setupTestHandler(t)
	defer cleanup()

	traced := tracing.HTTPMiddleware("denuncias")(handler.mux)

	reqBody := map[string]string{
		"categoria": "acoso laboral",
		"mensaje":   "Mi supervisor me amenaza constantemente y tengo correos que lo demuestran.",
	}
	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/api/reports", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	traced.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", w.Code, w.Body.String())
	}

	// Force flush to ensure all spans are recorded
	tp.ForceFlush(context.Background())

	spans := exporter.GetSpans()
	if len(spans) == 0 {
		t.Fatal("No spans were recorded")
	}

	var serverSpan *tracetest.SpanStub
	for i := range spans {
		if spans[i].Name == "POST /api/reports" {
			serverSpan = &spans[i]
			break
		}
	}

	if serverSpan == nil {
		t.Fatalf("POST /api/reports span not found, available spans: %v", getSpanNames(spans))
	}

	hasFolio := false
	hasLength := false
	hasStatus := false
	for _, attr := range serverSpan.Attributes {
		switch string(attr.Key) {
		case "folio":
			hasFolio = strings.HasPrefix(attr.Value.AsString(), "DEN_")
		case "mensaje.longitud":
			hasLength = attr.Value.AsInt64() > 0
		case "http.status_code":
			hasStatus = attr.Value.AsInt64() == int64(http.StatusAccepted)
		}
	}

	if !hasFolio {
		t.Error("folio attribute not found on intake span")
	}
	if !hasLength {
		t.Error("mensaje.longitud attribute not found on intake span")
	}
	if !hasStatus {
		t.Error("http.status_code attribute not recorded as 202")
	}
}

// TestAnalyzeTracing tests that the synchronous analyze handler annotates
// the request span
func TestAnalyzeTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	otel.SetTracerProvider(tp)

	handler, _, _, cleanup := setupTestHandler(t)
	defer cleanup()

	traced := tracing.HTTPMiddleware("denuncias")(handler.mux)

	reqBody := `{"mensaje":"Observé un desvío de fondos en el departamento de compras y tengo las facturas."}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	traced.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	tp.ForceFlush(context.Background())

	spans := exporter.GetSpans()
	var analyzeSpan *tracetest.SpanStub
	for i := range spans {
		if spans[i].Name == "POST /api/analyze" {
			analyzeSpan = &spans[i]
			break
		}
	}

	if analyzeSpan == nil {
		t.Fatalf("POST /api/analyze span not found, available spans: %v", getSpanNames(spans))
	}

	hasLength := false
	for _, attr := range analyzeSpan.Attributes {
		if string(attr.Key) == "mensaje.longitud" {
			hasLength = attr.Value.AsInt64() > 0
		}
	}

	if !hasLength {
		t.Error("mensaje.longitud attribute not found on analyze span")
	}
}

// TestTraceparentPropagation tests that an incoming W3C traceparent header
// continues the caller's trace
func TestTraceparentPropagation(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	handler, _, _, cleanup := setupTestHandler(t)
	defer cleanup()

	traced := tracing.HTTPMiddleware("denuncias")(handler.mux)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	w := httptest.NewRecorder()

	traced.ServeHTTP(w, req)

	tp.ForceFlush(context.Background())

	spans := exporter.GetSpans()
	if len(spans) == 0 {
		t.Fatal("No spans were recorded")
	}

	if got := spans[0].SpanContext.TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("Expected the caller's trace ID to continue, got %s", got)
	}
}

// getSpanNames returns a list of span names for debugging
func getSpanNames(spans tracetest.SpanStubs) []string {
	names := make([]string, len(spans))
	for i, span := range spans {
		names[i] = span.Name
	}
	return names
}

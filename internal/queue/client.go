package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Task type constants
const (
	TypeAnalyzeReport  = "denuncias:analyze_report"
	TypeEnrichReport   = "denuncias:enrich_report"
	TypeGenerateExport = "denuncias:generate_export"
)

// AnalyzeReportPayload represents the payload for rule-based report scoring.
// The report row is persisted before the task is enqueued, so the payload
// only carries the folio.
type AnalyzeReportPayload struct {
	Folio string `json:"folio"`
	// Tracing and timing fields
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"` // Unix timestamp in nanoseconds
}

// EnrichReportPayload represents the payload for agent-backed enrichment of
// an already scored report.
type EnrichReportPayload struct {
	Folio string `json:"folio"`
	// Tracing and timing fields
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"` // Unix timestamp in nanoseconds
}

// GenerateExportPayload represents the payload for export file generation
type GenerateExportPayload struct {
	ExportID string `json:"export_id"`
	// Tracing and timing fields
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"` // Unix timestamp in nanoseconds
}

// Client wraps the Asynq client for enqueueing tasks
type Client struct {
	client *asynq.Client
}

// ClientConfig contains configuration for the queue client
type ClientConfig struct {
	RedisAddr string
}

// NewClient creates a new queue client
func NewClient(cfg ClientConfig) *Client {
	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
	}

	client := asynq.NewClient(redisOpt)

	return &Client{
		client: client,
	}
}

// EnqueueAnalyzeReport enqueues a rule-based scoring task for a stored report.
// The task ID is the folio itself, so a report cannot be queued twice.
func (c *Client) EnqueueAnalyzeReport(ctx context.Context, folio string) (string, error) {
	payload := AnalyzeReportPayload{
		Folio:      folio,
		EnqueuedAt: time.Now().UnixNano(), // Record enqueue time for queue wait metrics
	}

	// Add tracing context if available
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		payload.TraceID = spanCtx.TraceID().String()
		payload.SpanID = spanCtx.SpanID().String()

		// Record enqueue event
		span.AddEvent("task_enqueued", trace.WithAttributes(
			attribute.String("task.type", TypeAnalyzeReport),
			attribute.String("task.id", folio),
			attribute.String("folio", folio),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		))
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(TypeAnalyzeReport, payloadBytes, asynq.TaskID(folio))

	opts := []asynq.Option{
		asynq.MaxRetry(3),                   // Scoring is deterministic, fail fast
		asynq.Timeout(5 * time.Minute),      // 5 minute timeout
		asynq.Queue("report-analysis"),      // Report analysis queue (highest priority)
		asynq.Retention(7 * 24 * time.Hour), // Keep completed tasks for 7 days
	}

	info, err := c.client.Enqueue(task, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue analyze report task: %w", err)
	}

	return info.ID, nil
}

// EnqueueEnrichReport enqueues an agent enrichment task for a scored report
func (c *Client) EnqueueEnrichReport(ctx context.Context, folio string) (string, error) {
	payload := EnrichReportPayload{
		Folio:      folio,
		EnqueuedAt: time.Now().UnixNano(),
	}

	// Add tracing context if available
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		payload.TraceID = spanCtx.TraceID().String()
		payload.SpanID = spanCtx.SpanID().String()

		// Record enqueue event
		span.AddEvent("task_enqueued", trace.WithAttributes(
			attribute.String("task.type", TypeEnrichReport),
			attribute.String("task.id", folio+"-enrich"),
			attribute.String("folio", folio),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		))
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}

	taskID := folio + "-enrich"
	task := asynq.NewTask(TypeEnrichReport, payloadBytes, asynq.TaskID(taskID))

	opts := []asynq.Option{
		asynq.MaxRetry(10),                  // High retry tolerance for Ollama
		asynq.Timeout(10 * time.Minute),     // 10 minute timeout for AI processing
		asynq.Queue("smart-enrichment"),     // Enrichment queue (medium priority)
		asynq.Retention(7 * 24 * time.Hour), // Keep completed tasks for 7 days
	}

	info, err := c.client.Enqueue(task, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue enrich report task: %w", err)
	}

	return info.ID, nil
}

// EnqueueGenerateExport enqueues a file generation task for an export job
func (c *Client) EnqueueGenerateExport(ctx context.Context, exportID string) (string, error) {
	payload := GenerateExportPayload{
		ExportID:   exportID,
		EnqueuedAt: time.Now().UnixNano(),
	}

	// Add tracing context if available
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		payload.TraceID = spanCtx.TraceID().String()
		payload.SpanID = spanCtx.SpanID().String()

		// Record enqueue event
		span.AddEvent("task_enqueued", trace.WithAttributes(
			attribute.String("task.type", TypeGenerateExport),
			attribute.String("task.id", exportID),
			attribute.String("export_id", exportID),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		))
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(TypeGenerateExport, payloadBytes, asynq.TaskID(exportID))

	opts := []asynq.Option{
		asynq.MaxRetry(3),                   // Standard retry for file generation
		asynq.Timeout(10 * time.Minute),     // Large result sets take a while
		asynq.Queue("export-generation"),    // Export queue (lowest priority)
		asynq.Retention(7 * 24 * time.Hour), // Keep completed tasks for 7 days
	}

	info, err := c.client.Enqueue(task, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue generate export task: %w", err)
	}

	return info.ID, nil
}

// Close closes the client connection
func (c *Client) Close() error {
	return c.client.Close()
}

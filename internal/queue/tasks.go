package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/zombar/denuncias/internal/analyzer"
	"github.com/zombar/denuncias/internal/database"
	"github.com/zombar/denuncias/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// handleAnalyzeReport runs the rule-based scoring pass over a stored
// report (Stage 1)
func (w *Worker) handleAnalyzeReport(ctx context.Context, t *asynq.Task) error {
	// Parse payload
	var payload AnalyzeReportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("failed to unmarshal task payload", "error", err)
		return fmt.Errorf("invalid task payload: %w", err)
	}

	folio := payload.Folio

	// Calculate queue wait time
	var queueWaitTime time.Duration
	if payload.EnqueuedAt > 0 {
		enqueuedTime := time.Unix(0, payload.EnqueuedAt)
		queueWaitTime = time.Since(enqueuedTime)
	}

	w.logger.Info("analyzing report",
		"folio", folio,
		"queue_wait_seconds", queueWaitTime.Seconds(),
	)

	// Recreate trace context from payload if available
	var span trace.Span
	if payload.TraceID != "" && payload.SpanID != "" {
		// Parse trace ID and span ID from hex strings
		traceID, err := trace.TraceIDFromHex(payload.TraceID)
		if err == nil {
			spanID, err := trace.SpanIDFromHex(payload.SpanID)
			if err == nil {
				// Create span context from stored IDs
				remoteSpanCtx := trace.NewSpanContext(trace.SpanContextConfig{
					TraceID:    traceID,
					SpanID:     spanID,
					TraceFlags: trace.FlagsSampled,
					Remote:     true,
				})

				// Create new context with the remote span context
				ctx = trace.ContextWithRemoteSpanContext(ctx, remoteSpanCtx)

				// Start a new span linked to the enqueue span
				ctx, span = otel.Tracer("denuncias").Start(ctx, "asynq.task.process",
					trace.WithSpanKind(trace.SpanKindConsumer),
					trace.WithAttributes(
						attribute.String("task.type", TypeAnalyzeReport),
						attribute.String("folio", folio),
						attribute.Float64("queue.wait_time_seconds", queueWaitTime.Seconds()),
						attribute.Int64("enqueued_at", payload.EnqueuedAt),
					),
				)
				defer span.End()

				// Record queue wait time event
				span.AddEvent("task_processing_started", trace.WithAttributes(
					attribute.Float64("wait_time_seconds", queueWaitTime.Seconds()),
				))
			}
		}
	} else {
		// No trace context in payload, check current context
		if existingSpan := trace.SpanFromContext(ctx); existingSpan.SpanContext().IsValid() {
			existingSpan.SetAttributes(
				attribute.String("folio", folio),
				attribute.Float64("queue.wait_time_seconds", queueWaitTime.Seconds()),
			)
		}
	}

	// Retrieve the stored report
	report, err := w.db.GetReport(folio)
	if err != nil {
		return fmt.Errorf("failed to retrieve report: %w", err)
	}

	// Start metrics timer for analysis duration with exemplar support
	timer := time.Now()
	var analysisStatus string
	defer func() {
		if analysisStatus != "" {
			duration := time.Since(timer).Seconds()
			// Record duration with exemplar linking to trace ID
			w.businessMetrics.ObserveDurationWithExemplar(ctx, w.businessMetrics.AnalysisDuration, duration, analysisStatus)
			w.businessMetrics.AnalysesTotal.WithLabelValues(analysisStatus).Inc()
		}
	}()

	// Rule-based scoring only; agent enrichment runs as its own task with
	// its own retry curve
	result := w.analyzer.AnalyzeWithStrategy(ctx, report.Mensaje, analyzer.StrategyLocal)

	if err := w.db.SaveScreening(folio, &result.Screening); err != nil {
		analysisStatus = "error"
		return fmt.Errorf("failed to save screening: %w", err)
	}

	if err := w.db.SaveAssessment(folio, &result.Assessment, database.StageAnalizada); err != nil {
		analysisStatus = "error"
		return fmt.Errorf("failed to save assessment: %w", err)
	}

	if err := w.db.SaveAlerts(folio, result.Assessment.Alerts); err != nil {
		analysisStatus = "error"
		return fmt.Errorf("failed to save alerts: %w", err)
	}

	analysisStatus = "success"

	// Record urgency tier and raised alerts
	w.businessMetrics.UrgencyTotal.WithLabelValues(result.Assessment.Urgency.Level).Inc()
	for _, alert := range result.Assessment.Alerts {
		w.businessMetrics.AlertsTotal.WithLabelValues(alert.Kind).Inc()
	}

	w.logger.Info("report analysis saved",
		"folio", folio,
		"urgency", result.Assessment.Urgency.Level,
		"category", result.Assessment.Category.Suggested,
		"veracity", result.Assessment.VeracityScore,
		"alert_count", len(result.Assessment.Alerts),
	)

	// Hand complex messages to the agent for a second opinion
	if w.analyzer.NeedsAgent(report.Mensaje) {
		w.logger.Info("message qualifies for agent enrichment",
			"folio", folio,
		)

		if _, err := w.queueClient.EnqueueEnrichReport(ctx, folio); err != nil {
			w.logger.Error("failed to enqueue enrichment", "error", err)
			// Don't fail the task if enrichment enqueue fails
		}
	}

	return nil
}

// handleEnrichReport overlays the agent's opinion on an already scored
// report via Ollama (Stage 2)
func (w *Worker) handleEnrichReport(ctx context.Context, t *asynq.Task) error {
	// Parse payload
	var payload EnrichReportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("failed to unmarshal task payload", "error", err)
		return fmt.Errorf("invalid task payload: %w", err)
	}

	folio := payload.Folio

	retryCount, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	// Calculate queue wait time
	var queueWaitTime time.Duration
	if payload.EnqueuedAt > 0 {
		enqueuedTime := time.Unix(0, payload.EnqueuedAt)
		queueWaitTime = time.Since(enqueuedTime)
	}

	w.logger.Info("enriching report with agent",
		"folio", folio,
		"retry_count", retryCount,
		"max_retries", maxRetry,
		"queue_wait_seconds", queueWaitTime.Seconds(),
	)

	// Recreate trace context from payload if available
	var span trace.Span
	if payload.TraceID != "" && payload.SpanID != "" {
		// Parse trace ID and span ID from hex strings
		traceID, err := trace.TraceIDFromHex(payload.TraceID)
		if err == nil {
			spanID, err := trace.SpanIDFromHex(payload.SpanID)
			if err == nil {
				// Create span context from stored IDs
				remoteSpanCtx := trace.NewSpanContext(trace.SpanContextConfig{
					TraceID:    traceID,
					SpanID:     spanID,
					TraceFlags: trace.FlagsSampled,
					Remote:     true,
				})

				// Create new context with the remote span context
				ctx = trace.ContextWithRemoteSpanContext(ctx, remoteSpanCtx)

				// Start a new span linked to the enqueue span
				ctx, span = otel.Tracer("denuncias").Start(ctx, "asynq.task.process",
					trace.WithSpanKind(trace.SpanKindConsumer),
					trace.WithAttributes(
						attribute.String("task.type", TypeEnrichReport),
						attribute.String("folio", folio),
						attribute.Int("retry_count", retryCount),
						attribute.Float64("queue.wait_time_seconds", queueWaitTime.Seconds()),
						attribute.Int64("enqueued_at", payload.EnqueuedAt),
					),
				)
				defer span.End()

				// Record queue wait time event
				span.AddEvent("task_processing_started", trace.WithAttributes(
					attribute.Float64("wait_time_seconds", queueWaitTime.Seconds()),
				))
			}
		}
	} else {
		// No trace context in payload, check current context
		if existingSpan := trace.SpanFromContext(ctx); existingSpan.SpanContext().IsValid() {
			existingSpan.SetAttributes(
				attribute.String("folio", folio),
				attribute.Int("retry_count", retryCount),
				attribute.Float64("queue.wait_time_seconds", queueWaitTime.Seconds()),
			)
		}
	}

	// Retrieve the stored report with its local assessment
	report, err := w.db.GetReport(folio)
	if err != nil {
		return fmt.Errorf("failed to retrieve report: %w", err)
	}
	if report.Analysis == nil {
		// Scoring has not landed yet, let Asynq retry
		return fmt.Errorf("report %s has no assessment to enrich", folio)
	}

	assessment := report.Analysis

	// Overlay the agent's classification and veracity opinion
	if err := w.analyzer.EnrichAssessment(ctx, report.Mensaje, assessment); err != nil {
		// Check if this is a retriable error (connection/timeout)
		if isRetriableOllamaError(err) {
			w.logger.Warn("retriable Ollama error, will retry",
				"folio", folio,
				"error", err,
				"retry_count", retryCount,
			)
			return err // Let Asynq retry
		}

		// Permanent error: the local assessment stays authoritative
		if dbErr := w.db.RecordReportError(folio, err.Error()); dbErr != nil {
			w.logger.Error("failed to record enrichment error", "folio", folio, "error", dbErr)
		}
		w.businessMetrics.EnrichmentsTotal.WithLabelValues("error").Inc()

		w.logger.Error("permanent error enriching report",
			"folio", folio,
			"error", err,
		)
		return fmt.Errorf("failed to enrich report: %w", err)
	}

	// Update assessment in database
	if err := w.db.SaveAssessment(folio, assessment, database.StageEnriquecida); err != nil {
		// Check if this is a retriable error
		if isRetriableOllamaError(err) {
			w.logger.Warn("retriable error, will retry",
				"folio", folio,
				"error", err,
				"retry_count", retryCount,
			)
			return err // Let Asynq retry
		}

		// Permanent error
		w.logger.Error("permanent error saving enriched assessment",
			"folio", folio,
			"error", err,
		)
		return fmt.Errorf("failed to save enriched assessment: %w", err)
	}

	w.businessMetrics.EnrichmentsTotal.WithLabelValues("success").Inc()

	w.logger.Info("report enrichment completed",
		"folio", folio,
		"agent", assessment.AgentUsed,
		"veracity", assessment.VeracityScore,
		"retry_count", retryCount,
	)

	return nil
}

// handleGenerateExport renders an export file for a queued export job
// (lowest priority)
func (w *Worker) handleGenerateExport(ctx context.Context, t *asynq.Task) error {
	// Parse payload
	var payload GenerateExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("failed to unmarshal task payload", "error", err)
		return fmt.Errorf("invalid task payload: %w", err)
	}

	exportID := payload.ExportID

	// Calculate queue wait time
	var queueWaitTime time.Duration
	if payload.EnqueuedAt > 0 {
		enqueuedTime := time.Unix(0, payload.EnqueuedAt)
		queueWaitTime = time.Since(enqueuedTime)
	}

	w.logger.Info("generating export",
		"export_id", exportID,
		"queue_wait_seconds", queueWaitTime.Seconds(),
	)

	// Recreate trace context from payload if available
	var span trace.Span
	if payload.TraceID != "" && payload.SpanID != "" {
		// Parse trace ID and span ID from hex strings
		traceID, err := trace.TraceIDFromHex(payload.TraceID)
		if err == nil {
			spanID, err := trace.SpanIDFromHex(payload.SpanID)
			if err == nil {
				// Create span context from stored IDs
				remoteSpanCtx := trace.NewSpanContext(trace.SpanContextConfig{
					TraceID:    traceID,
					SpanID:     spanID,
					TraceFlags: trace.FlagsSampled,
					Remote:     true,
				})

				// Create new context with the remote span context
				ctx = trace.ContextWithRemoteSpanContext(ctx, remoteSpanCtx)

				// Start a new span linked to the enqueue span
				ctx, span = otel.Tracer("denuncias").Start(ctx, "asynq.task.process",
					trace.WithSpanKind(trace.SpanKindConsumer),
					trace.WithAttributes(
						attribute.String("task.type", TypeGenerateExport),
						attribute.String("export.id", exportID),
						attribute.Float64("queue.wait_time_seconds", queueWaitTime.Seconds()),
						attribute.Int64("enqueued_at", payload.EnqueuedAt),
					),
				)
				defer span.End()

				// Record queue wait time event
				span.AddEvent("task_processing_started", trace.WithAttributes(
					attribute.Float64("wait_time_seconds", queueWaitTime.Seconds()),
				))
			}
		}
	} else {
		// No trace context in payload, check current context
		if existingSpan := trace.SpanFromContext(ctx); existingSpan.SpanContext().IsValid() {
			existingSpan.SetAttributes(
				attribute.String("export.id", exportID),
				attribute.Float64("queue.wait_time_seconds", queueWaitTime.Seconds()),
			)
		}
	}

	// Retrieve the export job
	job, err := w.db.GetExport(exportID)
	if err != nil {
		return fmt.Errorf("failed to retrieve export job: %w", err)
	}

	job.Status = models.ExportStatusProcessing
	if err := w.db.UpdateExport(job); err != nil {
		return fmt.Errorf("failed to mark export processing: %w", err)
	}

	reports, err := w.db.ListReports(job.Filter)
	if err != nil {
		return w.failExport(job, fmt.Errorf("failed to list reports for export: %w", err))
	}

	path, err := w.exporter.Render(job.Format, reports)
	if err != nil {
		return w.failExport(job, fmt.Errorf("failed to render export: %w", err))
	}

	now := time.Now()
	job.Status = models.ExportStatusCompleted
	job.FilePath = path
	job.Error = ""
	job.CompletedAt = &now
	if err := w.db.UpdateExport(job); err != nil {
		return fmt.Errorf("failed to mark export completed: %w", err)
	}

	w.businessMetrics.ExportsTotal.WithLabelValues(job.Format, "success").Inc()

	w.logger.Info("export generated",
		"export_id", exportID,
		"format", job.Format,
		"report_count", len(reports),
		"path", path,
	)

	return nil
}

// failExport marks the job failed and passes the underlying error through
// so Asynq still sees the task as failed.
func (w *Worker) failExport(job *models.Export, err error) error {
	job.Status = models.ExportStatusFailed
	job.Error = err.Error()
	if dbErr := w.db.UpdateExport(job); dbErr != nil {
		w.logger.Error("failed to mark export failed",
			"export_id", job.ID,
			"error", dbErr,
		)
	}
	w.businessMetrics.ExportsTotal.WithLabelValues(job.Format, "error").Inc()

	w.logger.Error("export generation failed",
		"export_id", job.ID,
		"error", err,
	)

	return err
}

// isRetriableOllamaError determines if an error is retriable (connection/timeout)
// vs permanent (invalid input)
func isRetriableOllamaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	// Retriable errors: connection issues, timeouts, temporary failures
	retriablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"service unavailable",
		"bad gateway",
		"gateway timeout",
		"too many requests",
		"context deadline exceeded",
		"context canceled",
		"i/o timeout",
		"no such host",
		"network is unreachable",
	}

	for _, pattern := range retriablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/zombar/denuncias/internal/analyzer"
	"github.com/zombar/denuncias/internal/database"
	"github.com/zombar/denuncias/internal/export"
	"github.com/zombar/denuncias/internal/models"
	"github.com/zombar/denuncias/internal/privacy"
	"github.com/zombar/denuncias/internal/reports"
	"github.com/zombar/denuncias/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// QueueClient is the queue surface the API depends on: intake enqueues the
// scoring task and export creation enqueues file generation.
type QueueClient interface {
	EnqueueAnalyzeReport(ctx context.Context, folio string) (string, error)
	EnqueueGenerateExport(ctx context.Context, exportID string) (string, error)
}

// Handler handles HTTP requests
type Handler struct {
	db          *database.DB
	analyzer    *analyzer.Analyzer
	sealer      *privacy.Sealer
	queueClient QueueClient
	mux         *http.ServeMux
}

// NewHandler creates a new API handler with CORS support and metrics
func NewHandler(db *database.DB, analyzer *analyzer.Analyzer, sealer *privacy.Sealer, queueClient QueueClient) http.Handler {
	h := &Handler{
		db:          db,
		analyzer:    analyzer,
		sealer:      sealer,
		queueClient: queueClient,
		mux:         http.NewServeMux(),
	}

	h.setupRoutes()

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	// Wrap with CORS
	return c.Handler(h.mux)
}

// setupRoutes configures all API routes
func (h *Handler) setupRoutes() {
	h.mux.Handle("/metrics", promhttp.Handler()) // Prometheus metrics endpoint
	h.mux.HandleFunc("/api/analyze", h.handleAnalyze)
	h.mux.HandleFunc("/api/screen", h.handleScreen)
	h.mux.HandleFunc("/api/reports", h.handleReports)
	h.mux.HandleFunc("/api/reports/", h.handleReportOperations)
	h.mux.HandleFunc("/api/alerts", h.handleAlerts)
	h.mux.HandleFunc("/api/stats", h.handleStats)
	h.mux.HandleFunc("/api/exports", h.handleExports)
	h.mux.HandleFunc("/api/exports/", h.handleExportStatus)
	h.mux.HandleFunc("/health", h.handleHealth)
}

// handleHealth handles health check requests
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleAnalyze handles synchronous analysis requests. Nothing is stored;
// the caller gets the screening and assessment back directly.
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Mensaje    string `json:"mensaje"`
		Estrategia string `json:"estrategia,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Mensaje == "" {
		respondError(w, "Mensaje field is required", http.StatusBadRequest)
		return
	}

	// Add message length to span
	tracing.SetSpanAttributes(r.Context(),
		attribute.Int("mensaje.longitud", utf8.RuneCountInString(req.Mensaje)))

	ctx := r.Context()

	var result analyzer.Result
	if req.Estrategia != "" {
		result = h.analyzer.AnalyzeWithStrategy(ctx, req.Mensaje, req.Estrategia)
	} else {
		result = h.analyzer.Analyze(ctx, req.Mensaje)
	}

	respondJSON(w, result, http.StatusOK)
}

// handleScreen handles screening-only requests
func (h *Handler) handleScreen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Mensaje string `json:"mensaje"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Mensaje == "" {
		respondError(w, "Mensaje field is required", http.StatusBadRequest)
		return
	}

	respondJSON(w, h.analyzer.Screen(req.Mensaje), http.StatusOK)
}

// handleReports routes the collection endpoint: POST registers a report,
// GET lists stored reports.
func (h *Handler) handleReports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createReport(w, r)
	case http.MethodGet:
		h.listReports(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// createReport registers an anonymous report and queues it for analysis
func (h *Handler) createReport(w http.ResponseWriter, r *http.Request) {
	// Decode into a raw map first so identity fields can be rejected
	// regardless of where in the payload they appear
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if field := privacy.ForbiddenField(raw); field != "" {
		respondError(w, fmt.Sprintf("Campo prohibido por anonimato: %s", field), http.StatusBadRequest)
		return
	}

	var categoria, mensaje string
	if v, ok := raw["categoria"]; ok {
		json.Unmarshal(v, &categoria)
	}
	if v, ok := raw["mensaje"]; ok {
		json.Unmarshal(v, &mensaje)
	}

	if err := reports.Validate(categoria, mensaje); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	report := reports.New(categoria, mensaje)

	// Screen at intake so spam is flagged before the queue gets involved
	screening := h.analyzer.Screen(report.Mensaje)
	report.Screening = &screening
	report.Firma = h.sealer.SignReport(report)

	// The content hash goes on the span instead of the message itself, so
	// traces stay useful for audits without leaking report text
	tracing.SetSpanAttributes(r.Context(),
		attribute.String("folio", report.Folio),
		attribute.String("mensaje.hash", h.sealer.ContentHash(report.Mensaje)),
		attribute.Int("mensaje.longitud", utf8.RuneCountInString(report.Mensaje)))

	// Persist in a goroutine
	errorChan := make(chan error)
	doneChan := make(chan bool)

	go func() {
		if err := h.db.SaveReport(&report); err != nil {
			errorChan <- err
			return
		}
		doneChan <- true
	}()

	select {
	case <-doneChan:
	case err := <-errorChan:
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	case <-time.After(30 * time.Second):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
		return
	}

	// Enqueue scoring task
	ctx := r.Context()
	taskID, err := h.queueClient.EnqueueAnalyzeReport(ctx, report.Folio)
	if err != nil {
		respondError(w, fmt.Sprintf("Failed to enqueue analysis: %v", err), http.StatusInternalServerError)
		return
	}

	// Stage marker is advisory; the worker overwrites it once scoring runs
	h.db.MarkReportEnqueued(report.Folio)

	// Return the folio immediately
	respondJSON(w, map[string]interface{}{
		"folio":   report.Folio,
		"firma":   report.Firma,
		"estado":  report.Estado,
		"task_id": taskID,
		"status":  "queued",
		"message": "Denuncia registrada y encolada para análisis",
	}, http.StatusAccepted)
}

// listReports lists stored reports with filters and pagination
func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := models.ReportFilter{
		Categoria: q.Get("categoria"),
		Estado:    q.Get("estado"),
		Urgencia:  q.Get("urgencia"),
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			filter.Limit = l
		}
	}

	if offsetStr := q.Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			filter.Offset = o
		}
	}

	desde, err := parseFilterTime(q.Get("desde"))
	if err != nil {
		respondError(w, "Invalid desde date", http.StatusBadRequest)
		return
	}
	filter.Desde = desde

	hasta, err := parseFilterTime(q.Get("hasta"))
	if err != nil {
		respondError(w, "Invalid hasta date", http.StatusBadRequest)
		return
	}
	filter.Hasta = hasta

	// Fetch reports in a goroutine
	resultChan := make(chan []*models.Report)
	errorChan := make(chan error)

	go func() {
		list, err := h.db.ListReports(filter)
		if err != nil {
			errorChan <- err
			return
		}
		resultChan <- list
	}()

	select {
	case list := <-resultChan:
		respondJSON(w, list, http.StatusOK)
	case err := <-errorChan:
		respondError(w, err.Error(), http.StatusInternalServerError)
	case <-time.After(30 * time.Second):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// handleReportOperations handles GET and DELETE for a report plus PUT on
// its estado subresource
func (h *Handler) handleReportOperations(w http.ResponseWriter, r *http.Request) {
	rest := r.URL.Path[len("/api/reports/"):]

	if folio, ok := strings.CutSuffix(rest, "/estado"); ok {
		if r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.updateReportStatus(w, r, folio)
		return
	}

	folio := rest
	if idx := strings.Index(folio, "/"); idx != -1 {
		folio = folio[:idx]
	}

	if folio == "" {
		respondError(w, "Folio is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getReport(w, r, folio)
	case http.MethodDelete:
		h.deleteReport(w, r, folio)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// getReport retrieves a specific report
func (h *Handler) getReport(w http.ResponseWriter, r *http.Request, folio string) {
	resultChan := make(chan *models.Report)
	errorChan := make(chan error)

	go func() {
		report, err := h.db.GetReport(folio)
		if err != nil {
			errorChan <- err
			return
		}
		resultChan <- report
	}()

	select {
	case report := <-resultChan:
		// A signature mismatch means the stored row changed after intake.
		// The report is still served; the mismatch is an audit signal, not
		// an access decision.
		if report.Firma != "" && !h.sealer.VerifyReport(*report) {
			slog.Warn("report integrity signature mismatch",
				"folio", report.Folio,
				"mensaje_hash", h.sealer.ContentHash(report.Mensaje),
			)
		}
		respondJSON(w, report, http.StatusOK)
	case err := <-errorChan:
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, err.Error(), http.StatusNotFound)
		} else {
			respondError(w, err.Error(), http.StatusInternalServerError)
		}
	case <-time.After(30 * time.Second):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// deleteReport deletes a specific report
func (h *Handler) deleteReport(w http.ResponseWriter, r *http.Request, folio string) {
	errorChan := make(chan error)
	doneChan := make(chan bool)

	go func() {
		if err := h.db.DeleteReport(folio); err != nil {
			errorChan <- err
			return
		}
		doneChan <- true
	}()

	select {
	case <-doneChan:
		w.WriteHeader(http.StatusNoContent)
	case err := <-errorChan:
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, err.Error(), http.StatusNotFound)
		} else {
			respondError(w, err.Error(), http.StatusInternalServerError)
		}
	case <-time.After(30 * time.Second):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// updateReportStatus moves a report through the triage lifecycle
func (h *Handler) updateReportStatus(w http.ResponseWriter, r *http.Request, folio string) {
	if folio == "" {
		respondError(w, "Folio is required", http.StatusBadRequest)
		return
	}

	var req struct {
		Estado string `json:"estado"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Estado == "" {
		respondError(w, "Estado field is required", http.StatusBadRequest)
		return
	}

	errorChan := make(chan error)
	doneChan := make(chan bool)

	go func() {
		if err := h.db.UpdateReportStatus(folio, req.Estado); err != nil {
			errorChan <- err
			return
		}
		doneChan <- true
	}()

	select {
	case <-doneChan:
		respondJSON(w, map[string]string{
			"folio":       folio,
			"estado":      req.Estado,
			"descripcion": reports.StatusDescription(req.Estado),
		}, http.StatusOK)
	case err := <-errorChan:
		switch {
		case errors.Is(err, database.ErrNotFound):
			respondError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, database.ErrInvalidTransition):
			// Rejected transitions answer with the valid lifecycle
			respondJSON(w, map[string]interface{}{
				"error":           err.Error(),
				"estados_validos": reports.StatusNames(),
			}, http.StatusConflict)
		default:
			respondError(w, err.Error(), http.StatusInternalServerError)
		}
	case <-time.After(30 * time.Second):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// handleAlerts lists the most recent persisted alerts
func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	resultChan := make(chan []models.StoredAlert)
	errorChan := make(chan error)

	go func() {
		alerts, err := h.db.ListRecentAlerts(limit)
		if err != nil {
			errorChan <- err
			return
		}
		resultChan <- alerts
	}()

	select {
	case alerts := <-resultChan:
		respondJSON(w, alerts, http.StatusOK)
	case err := <-errorChan:
		respondError(w, err.Error(), http.StatusInternalServerError)
	case <-time.After(30 * time.Second):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// handleStats serves store aggregates together with the engine's
// capabilities
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resultChan := make(chan *models.StoreStats)
	errorChan := make(chan error)

	go func() {
		stats, err := h.db.Stats()
		if err != nil {
			errorChan <- err
			return
		}
		resultChan <- stats
	}()

	select {
	case stats := <-resultChan:
		respondJSON(w, map[string]interface{}{
			"almacen": stats,
			"motor":   h.analyzer.Engine().Info(),
		}, http.StatusOK)
	case err := <-errorChan:
		respondError(w, err.Error(), http.StatusInternalServerError)
	case <-time.After(30 * time.Second):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// handleExports routes the export collection: POST queues a new export
// job, GET lists recent jobs.
func (h *Handler) handleExports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createExport(w, r)
	case http.MethodGet:
		h.listExports(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// createExport registers an export job and queues file generation
func (h *Handler) createExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Formato string               `json:"formato"`
		Filtros *models.ReportFilter `json:"filtros,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !export.ValidFormat(req.Formato) {
		respondError(w, fmt.Sprintf("Formato no soportado: %q", req.Formato), http.StatusBadRequest)
		return
	}

	job := &models.Export{
		ID:        generateID(),
		Format:    req.Formato,
		Status:    models.ExportStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	if req.Filtros != nil {
		job.Filter = *req.Filtros
	}

	errorChan := make(chan error)
	doneChan := make(chan bool)

	go func() {
		if err := h.db.CreateExport(job); err != nil {
			errorChan <- err
			return
		}
		doneChan <- true
	}()

	select {
	case <-doneChan:
	case err := <-errorChan:
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	case <-time.After(30 * time.Second):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
		return
	}

	taskID, err := h.queueClient.EnqueueGenerateExport(r.Context(), job.ID)
	if err != nil {
		respondError(w, fmt.Sprintf("Failed to enqueue export: %v", err), http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]interface{}{
		"id":      job.ID,
		"formato": job.Format,
		"status":  job.Status,
		"task_id": taskID,
	}, http.StatusAccepted)
}

// listExports lists recent export jobs
func (h *Handler) listExports(w http.ResponseWriter, r *http.Request) {
	resultChan := make(chan []*models.Export)
	errorChan := make(chan error)

	go func() {
		jobs, err := h.db.ListExports(50)
		if err != nil {
			errorChan <- err
			return
		}
		resultChan <- jobs
	}()

	select {
	case jobs := <-resultChan:
		respondJSON(w, jobs, http.StatusOK)
	case err := <-errorChan:
		respondError(w, err.Error(), http.StatusInternalServerError)
	case <-time.After(30 * time.Second):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// handleExportStatus retrieves a single export job by ID
func (h *Handler) handleExportStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Path[len("/api/exports/"):]
	if idx := strings.Index(id, "/"); idx != -1 {
		id = id[:idx]
	}

	if id == "" {
		respondError(w, "Export ID is required", http.StatusBadRequest)
		return
	}

	resultChan := make(chan *models.Export)
	errorChan := make(chan error)

	go func() {
		job, err := h.db.GetExport(id)
		if err != nil {
			errorChan <- err
			return
		}
		resultChan <- job
	}()

	select {
	case job := <-resultChan:
		respondJSON(w, job, http.StatusOK)
	case err := <-errorChan:
		if errors.Is(err, database.ErrExportNotFound) {
			respondError(w, err.Error(), http.StatusNotFound)
		} else {
			respondError(w, err.Error(), http.StatusInternalServerError)
		}
	case <-time.After(30 * time.Second):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// parseFilterTime parses a filter bound, accepting RFC3339 or a bare date
func parseFilterTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// generateID generates a UUID for an export job
func generateID() string {
	uuid := make([]byte, 16)
	_, err := rand.Read(uuid)
	if err != nil {
		// Fallback to timestamp-based ID if random generation fails
		return time.Now().Format("20060102150405") + "-" + strconv.FormatInt(time.Now().UnixNano()%1000000, 10)
	}

	// Set version (4) and variant bits according to RFC 4122
	uuid[6] = (uuid[6] & 0x0f) | 0x40 // Version 4
	uuid[8] = (uuid[8] & 0x3f) | 0x80 // Variant bits

	// Format as standard UUID string: xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx
	return fmt.Sprintf("%s-%s-%s-%s-%s",
		hex.EncodeToString(uuid[0:4]),
		hex.EncodeToString(uuid[4:6]),
		hex.EncodeToString(uuid[6:8]),
		hex.EncodeToString(uuid[8:10]),
		hex.EncodeToString(uuid[10:16]))
}

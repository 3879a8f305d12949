package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/zombar/denuncias/internal/models"
	"github.com/zombar/denuncias/internal/reports"
)

// Sentinel errors so handlers can map storage failures to status codes.
var (
	ErrNotFound          = errors.New("report not found")
	ErrExportNotFound    = errors.New("export not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Processing stages recorded on denuncias rows as a report moves through
// the pipeline.
const (
	StageRecibida    = "recibida"
	StageEncolada    = "encolada"
	StageAnalizada   = "analizada"
	StageEnriquecida = "enriquecida"
)

// defaultListLimit bounds list queries when the caller passes no limit.
const defaultListLimit = 50

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// SaveReport inserts a report or, when the folio already exists, replaces
// its mutable columns. The analysis and screening documents are stored as
// JSONB so their Spanish wire shape survives round trips unchanged.
func (db *DB) SaveReport(report *models.Report) error {
	var analisis interface{}
	if report.Analysis != nil {
		data, err := json.Marshal(report.Analysis)
		if err != nil {
			return fmt.Errorf("failed to marshal analysis: %w", err)
		}
		analisis = data
	}

	var filtrado interface{}
	if report.Screening != nil {
		data, err := json.Marshal(report.Screening)
		if err != nil {
			return fmt.Errorf("failed to marshal screening: %w", err)
		}
		filtrado = data
	}

	_, err := db.conn.Exec(`
		INSERT INTO denuncias (folio, categoria, mensaje, estado, firma, analisis, filtrado, urgencia, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (folio) DO UPDATE SET
			categoria = EXCLUDED.categoria,
			mensaje = EXCLUDED.mensaje,
			estado = EXCLUDED.estado,
			firma = EXCLUDED.firma,
			analisis = EXCLUDED.analisis,
			filtrado = EXCLUDED.filtrado,
			urgencia = EXCLUDED.urgencia,
			updated_at = NOW()
	`, report.Folio, report.Categoria, report.Mensaje, report.Estado,
		nullString(report.Firma), analisis, filtrado, urgencyColumn(report),
		report.CreatedAt, report.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	return nil
}

// GetReport retrieves a report by folio.
func (db *DB) GetReport(folio string) (*models.Report, error) {
	row := db.conn.QueryRow(`
		SELECT folio, categoria, mensaje, estado, firma, analisis, filtrado, created_at, updated_at
		FROM denuncias
		WHERE folio = $1
	`, folio)

	report, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// ListReports retrieves reports matching the filter, newest first.
func (db *DB) ListReports(filter models.ReportFilter) ([]*models.Report, error) {
	query := `
		SELECT folio, categoria, mensaje, estado, firma, analisis, filtrado, created_at, updated_at
		FROM denuncias`

	var conds []string
	var args []interface{}
	add := func(cond string, value interface{}) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Categoria != "" {
		add("categoria = $%d", filter.Categoria)
	}
	if filter.Estado != "" {
		add("estado = $%d", filter.Estado)
	}
	if filter.Urgencia != "" {
		add("urgencia = $%d", filter.Urgencia)
	}
	if filter.Desde != nil {
		add("created_at >= $%d", *filter.Desde)
	}
	if filter.Hasta != nil {
		add("created_at <= $%d", *filter.Hasta)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var result []*models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return result, nil
}

// UpdateReportStatus moves a report to a new state, enforcing the forward
// triage flow. Archived reports never leave that state.
func (db *DB) UpdateReportStatus(folio, estado string) error {
	if !reports.ValidStatus(estado) {
		return fmt.Errorf("%w: estado desconocido %q", ErrInvalidTransition, estado)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRow("SELECT estado FROM denuncias WHERE folio = $1 FOR UPDATE", folio).Scan(&current)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read current status: %w", err)
	}

	if !reports.CanTransition(current, estado) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, estado)
	}

	if _, err := tx.Exec("UPDATE denuncias SET estado = $1, updated_at = NOW() WHERE folio = $2", estado, folio); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	return tx.Commit()
}

// DeleteReport deletes a report by folio. Alert rows cascade.
func (db *DB) DeleteReport(folio string) error {
	result, err := db.conn.Exec("DELETE FROM denuncias WHERE folio = $1", folio)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveScreening attaches the intake screening verdict to a stored report.
func (db *DB) SaveScreening(folio string, screening *models.ScreeningResult) error {
	data, err := json.Marshal(screening)
	if err != nil {
		return fmt.Errorf("failed to marshal screening: %w", err)
	}

	result, err := db.conn.Exec(`
		UPDATE denuncias SET filtrado = $1, updated_at = NOW() WHERE folio = $2
	`, data, folio)
	if err != nil {
		return fmt.Errorf("failed to save screening: %w", err)
	}
	return requireRow(result)
}

// SaveAssessment attaches an assessment to a stored report and advances its
// processing bookkeeping to the given stage.
func (db *DB) SaveAssessment(folio string, assessment *models.Assessment, stage string) error {
	data, err := json.Marshal(assessment)
	if err != nil {
		return fmt.Errorf("failed to marshal assessment: %w", err)
	}

	result, err := db.conn.Exec(`
		UPDATE denuncias
		SET analisis = $1, urgencia = $2, processing_stage = $3, analyzed_at = NOW(), updated_at = NOW()
		WHERE folio = $4
	`, data, nullString(assessment.Urgency.Level), stage, folio)
	if err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}
	return requireRow(result)
}

// MarkReportEnqueued records that a report entered the analysis queue.
func (db *DB) MarkReportEnqueued(folio string) error {
	result, err := db.conn.Exec(`
		UPDATE denuncias SET processing_stage = $1, enqueued_at = NOW(), updated_at = NOW() WHERE folio = $2
	`, StageEncolada, folio)
	if err != nil {
		return fmt.Errorf("failed to mark report enqueued: %w", err)
	}
	return requireRow(result)
}

// RecordReportError stores the last processing error and bumps the retry
// counter so stuck reports are visible to operators.
func (db *DB) RecordReportError(folio, message string) error {
	result, err := db.conn.Exec(`
		UPDATE denuncias SET last_error = $1, retry_count = retry_count + 1, updated_at = NOW() WHERE folio = $2
	`, message, folio)
	if err != nil {
		return fmt.Errorf("failed to record report error: %w", err)
	}
	return requireRow(result)
}

// SaveAlerts replaces the persisted alert rows for a report. Reanalysis
// regenerates alerts, so stale rows from an earlier pass are dropped.
func (db *DB) SaveAlerts(folio string, alerts []models.Alert) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM alertas WHERE folio = $1", folio); err != nil {
		return fmt.Errorf("failed to clear alerts: %w", err)
	}

	for _, alert := range alerts {
		_, err := tx.Exec(`
			INSERT INTO alertas (folio, tipo, mensaje, prioridad, accion_sugerida)
			VALUES ($1, $2, $3, $4, $5)
		`, folio, alert.Kind, alert.Message, alert.Priority, alert.SuggestedAction)
		if err != nil {
			return fmt.Errorf("failed to insert alert: %w", err)
		}
	}

	return tx.Commit()
}

// ListRecentAlerts retrieves the newest persisted alerts across all
// reports.
func (db *DB) ListRecentAlerts(limit int) ([]models.StoredAlert, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := db.conn.Query(`
		SELECT id, folio, tipo, mensaje, prioridad, accion_sugerida, created_at
		FROM alertas
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.StoredAlert
	for rows.Next() {
		var (
			alert  models.StoredAlert
			action sql.NullString
		)
		if err := rows.Scan(&alert.ID, &alert.Folio, &alert.Kind, &alert.Message, &alert.Priority, &action, &alert.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alert.SuggestedAction = action.String
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return alerts, nil
}

// CreateExport records a new export job.
func (db *DB) CreateExport(export *models.Export) error {
	filtros, err := json.Marshal(export.Filter)
	if err != nil {
		return fmt.Errorf("failed to marshal export filter: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO exports (id, formato, status, filtros, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, export.ID, export.Format, export.Status, filtros, export.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create export: %w", err)
	}

	return nil
}

// UpdateExport stores the outcome of an export job.
func (db *DB) UpdateExport(export *models.Export) error {
	result, err := db.conn.Exec(`
		UPDATE exports
		SET status = $1, file_path = $2, last_error = $3, completed_at = $4
		WHERE id = $5
	`, export.Status, nullString(export.FilePath), nullString(export.Error), export.CompletedAt, export.ID)
	if err != nil {
		return fmt.Errorf("failed to update export: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrExportNotFound
	}

	return nil
}

// GetExport retrieves an export job by id.
func (db *DB) GetExport(id string) (*models.Export, error) {
	row := db.conn.QueryRow(`
		SELECT id, formato, status, filtros, file_path, last_error, created_at, completed_at
		FROM exports
		WHERE id = $1
	`, id)

	export, err := scanExport(row)
	if err == sql.ErrNoRows {
		return nil, ErrExportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export: %w", err)
	}
	return export, nil
}

// ListExports retrieves export jobs, newest first.
func (db *DB) ListExports(limit int) ([]*models.Export, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := db.conn.Query(`
		SELECT id, formato, status, filtros, file_path, last_error, created_at, completed_at
		FROM exports
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query exports: %w", err)
	}
	defer rows.Close()

	var exports []*models.Export
	for rows.Next() {
		export, err := scanExport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		exports = append(exports, export)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return exports, nil
}

// Stats aggregates the stored reports for the stats endpoint and the
// generated summaries.
func (db *DB) Stats() (*models.StoreStats, error) {
	stats := &models.StoreStats{
		ByCategory: make(map[string]int),
		ByStatus:   make(map[string]int),
		ByUrgency:  make(map[string]int),
	}

	if err := db.conn.QueryRow("SELECT COUNT(*) FROM denuncias").Scan(&stats.TotalReports); err != nil {
		return nil, fmt.Errorf("failed to count reports: %w", err)
	}

	if err := db.groupCount("categoria", stats.ByCategory); err != nil {
		return nil, err
	}
	if err := db.groupCount("estado", stats.ByStatus); err != nil {
		return nil, err
	}
	if err := db.groupCount("urgencia", stats.ByUrgency); err != nil {
		return nil, err
	}

	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM denuncias WHERE (analisis->>'requiere_atencion_inmediata')::boolean
	`).Scan(&stats.ImmediateAttention)
	if err != nil {
		return nil, fmt.Errorf("failed to count immediate attention reports: %w", err)
	}

	err = db.conn.QueryRow(`
		SELECT COUNT(*) FROM denuncias WHERE (filtrado->'spam'->>'es_spam')::boolean
	`).Scan(&stats.SpamReports)
	if err != nil {
		return nil, fmt.Errorf("failed to count spam reports: %w", err)
	}

	var avg float64
	err = db.conn.QueryRow(`
		SELECT COALESCE(AVG((analisis->>'puntuacion_veracidad')::float), 0)
		FROM denuncias
		WHERE analisis IS NOT NULL
	`).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("failed to average veracity: %w", err)
	}
	stats.AverageVeracity = math.Round(avg*100) / 100

	return stats, nil
}

func (db *DB) groupCount(column string, dest map[string]int) error {
	rows, err := db.conn.Query(fmt.Sprintf(
		"SELECT %s, COUNT(*) FROM denuncias WHERE %s IS NOT NULL GROUP BY %s", column, column, column))
	if err != nil {
		return fmt.Errorf("failed to group by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan %s group: %w", column, err)
		}
		dest[key] = count
	}
	return rows.Err()
}

func scanReport(row rowScanner) (*models.Report, error) {
	var (
		report   models.Report
		firma    sql.NullString
		analisis []byte
		filtrado []byte
	)

	err := row.Scan(&report.Folio, &report.Categoria, &report.Mensaje, &report.Estado,
		&firma, &analisis, &filtrado, &report.CreatedAt, &report.UpdatedAt)
	if err != nil {
		return nil, err
	}

	report.Firma = firma.String
	if len(analisis) > 0 {
		var assessment models.Assessment
		if err := json.Unmarshal(analisis, &assessment); err != nil {
			return nil, fmt.Errorf("failed to unmarshal analysis: %w", err)
		}
		report.Analysis = &assessment
	}
	if len(filtrado) > 0 {
		var screening models.ScreeningResult
		if err := json.Unmarshal(filtrado, &screening); err != nil {
			return nil, fmt.Errorf("failed to unmarshal screening: %w", err)
		}
		report.Screening = &screening
	}

	return &report, nil
}

func scanExport(row rowScanner) (*models.Export, error) {
	var (
		export    models.Export
		filtros   []byte
		filePath  sql.NullString
		lastError sql.NullString
		completed sql.NullTime
	)

	err := row.Scan(&export.ID, &export.Format, &export.Status, &filtros,
		&filePath, &lastError, &export.CreatedAt, &completed)
	if err != nil {
		return nil, err
	}

	if len(filtros) > 0 {
		if err := json.Unmarshal(filtros, &export.Filter); err != nil {
			return nil, fmt.Errorf("failed to unmarshal export filter: %w", err)
		}
	}
	export.FilePath = filePath.String
	export.Error = lastError.String
	if completed.Valid {
		t := completed.Time
		export.CompletedAt = &t
	}

	return &export, nil
}

// urgencyColumn mirrors the assessed urgency tier into its own column so
// list filters and stats never have to reach into the JSONB document.
func urgencyColumn(report *models.Report) interface{} {
	if report.Analysis != nil && report.Analysis.Urgency.Level != "" {
		return report.Analysis.Urgency.Level
	}
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

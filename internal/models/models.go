package models

import "time"

// Report estado values. A report always starts as StatusNueva and moves
// through the workflow from there; the set is closed.
const (
	StatusNueva     = "nueva"
	StatusRevisada  = "revisada"
	StatusEnProceso = "en_proceso"
	StatusResuelta  = "resuelta"
	StatusArchivada = "archivada"
)

// Report represents a stored denuncia with its lifecycle state and, once a
// worker has processed it, the attached screening and analysis results.
type Report struct {
	Folio     string           `json:"folio"`
	Categoria string           `json:"categoria"`
	Mensaje   string           `json:"mensaje"`
	Estado    string           `json:"estado"`
	Firma     string           `json:"firma_integridad,omitempty"`
	Screening *ScreeningResult `json:"filtrado,omitempty"`
	Analysis  *Assessment      `json:"analisis_ia,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Assessment is the full result of analyzing a report message. Field names
// on the wire stay in Spanish so stored documents remain compatible with
// the intake forms and downstream tooling that consume them.
type Assessment struct {
	AnalyzedAt time.Time `json:"timestamp_analisis"`

	Urgency  UrgencyAssessment  `json:"urgencia"`
	Category CategoryAssessment `json:"categoria"`
	Priority PriorityAssessment `json:"prioridad"`

	Entities  Entities            `json:"entidades"`
	Sentiment SentimentAssessment `json:"sentimientos"`
	Evidence  EvidenceAssessment  `json:"evidencias"`

	Alerts          []Alert  `json:"alertas"`
	Recommendations []string `json:"recomendaciones"`

	RequiresImmediateAttention bool    `json:"requiere_atencion_inmediata"`
	RequiresHumanReview        bool    `json:"requiere_revision_humana"`
	VeracityScore              float64 `json:"puntuacion_veracidad"`
	ExecutiveSummary           string  `json:"resumen_ejecutivo"`

	Processed bool   `json:"procesamiento_exitoso"`
	Error     string `json:"error,omitempty"`
	Mode      string `json:"modo_procesamiento,omitempty"`
	AgentUsed string `json:"agente_usado,omitempty"`
}

// UrgencyAssessment carries the urgency tier for a message. Rank is the
// ordinal of the tier (1 BAJA .. 5 EMERGENCIA) so consumers can compare
// without parsing the name.
type UrgencyAssessment struct {
	Level       string `json:"nivel"`
	Rank        int    `json:"valor"`
	Description string `json:"descripcion"`
}

// CategoryAssessment is the suggested category with its confidence and the
// runner-up categories that also matched.
type CategoryAssessment struct {
	Suggested    string   `json:"sugerida"`
	Confidence   float64  `json:"confianza"`
	Alternatives []string `json:"alternativas"`
}

// PriorityAssessment is the composite triage score built from urgency plus
// aggravating factors found in the message.
type PriorityAssessment struct {
	Score         int    `json:"puntuacion"`
	Level         string `json:"nivel"`
	Justification string `json:"justificacion"`
}

// Entities holds the literal mentions extracted from a message, deduplicated
// in order of first appearance.
type Entities struct {
	Times    []string `json:"tiempos"`
	Places   []string `json:"lugares"`
	People   []string `json:"personas"`
	Evidence []string `json:"evidencias"`
}

// SentimentAssessment summarizes the emotional profile of a message.
// Emotions maps emotion name to a capped occurrence count; families with no
// hits are omitted entirely.
type SentimentAssessment struct {
	Emotions              map[string]int `json:"emociones_detectadas"`
	Polarity              string         `json:"polaridad"`
	Intensity             string         `json:"intensidad"`
	NeedsEmotionalSupport bool           `json:"requiere_apoyo_emocional"`
}

// EvidenceAssessment grades how well supported a report is. Types maps
// evidence kind (documental, visual, testimonial, fisica) to mention count.
type EvidenceAssessment struct {
	Types             map[string]int `json:"tipos_evidencia"`
	Score             float64        `json:"puntuacion_evidencia"`
	Credibility       string         `json:"nivel_credibilidad"`
	Specificity       int            `json:"especificidad"`
	NeedsMoreEvidence bool           `json:"requiere_mas_evidencia"`
}

// Alert is an automatic flag raised during analysis, with a suggested
// follow-up action for the reviewer.
type Alert struct {
	Kind            string `json:"tipo"`
	Message         string `json:"mensaje"`
	Priority        string `json:"prioridad"`
	SuggestedAction string `json:"accion_sugerida"`
}

// StoredAlert is an alert row persisted for the alert feed, tied to the
// report that raised it.
type StoredAlert struct {
	ID    int64  `json:"id"`
	Folio string `json:"folio"`
	Alert
	CreatedAt time.Time `json:"created_at"`
}

// ScreeningResult is the cheap pre-analysis pass that runs before the full
// engine: spam detection, a quick veracity estimate and a quick urgency
// estimate over the raw text.
type ScreeningResult struct {
	ScreenedAt     time.Time `json:"timestamp_analisis"`
	TextPreview    string    `json:"texto_analizado"`
	OriginalLength int       `json:"longitud_original"`

	Spam     SpamCheck     `json:"spam"`
	Veracity VeracityCheck `json:"veracidad"`
	Urgency  UrgencyCheck  `json:"urgencia"`

	IsValid                    bool    `json:"es_denuncia_valida"`
	ValidityConfidence         float64 `json:"confianza_validez"`
	RequiresHumanReview        bool    `json:"requiere_revision_humana"`
	RequiresImmediateAttention bool    `json:"requiere_atencion_inmediata"`
}

// SpamCheck reports whether a message looks like noise rather than a real
// denuncia, and why.
type SpamCheck struct {
	IsSpam     bool    `json:"es_spam"`
	Score      float64 `json:"puntuacion"`
	Confidence float64 `json:"confianza"`
	Reasons    string  `json:"razones"`
}

// VeracityCheck is the quick linguistic credibility estimate: certainty
// markers push the score up, hedging pushes it down.
type VeracityCheck struct {
	Score            float64 `json:"puntuacion"`
	Level            string  `json:"nivel"`
	CertaintyMarkers int     `json:"indicadores_certeza"`
	HedgeMarkers     int     `json:"indicadores_duda"`
	SpecificDetails  int     `json:"detalles_especificos"`
	WordCount        int     `json:"palabras"`
}

// UrgencyCheck is the quick urgency estimate used for routing before the
// full analysis runs.
type UrgencyCheck struct {
	Score      float64  `json:"puntuacion"`
	Level      string   `json:"nivel"`
	Indicators []string `json:"indicadores_encontrados"`
}

// EngineInfo describes the analysis engine: its closed category set, the
// urgency tiers it can emit and the capabilities it advertises.
type EngineInfo struct {
	Version       string   `json:"version_agente"`
	Categories    []string `json:"categorias_disponibles"`
	UrgencyLevels []string `json:"niveles_urgencia"`
	AlertKinds    []string `json:"tipos_alerta"`
	Capabilities  []string `json:"capacidades"`
}

// ReportFilter narrows list, stats and export queries. Zero values mean
// "no constraint"; Limit of 0 falls back to the server default.
type ReportFilter struct {
	Categoria string     `json:"categoria,omitempty"`
	Estado    string     `json:"estado,omitempty"`
	Urgencia  string     `json:"urgencia,omitempty"`
	Desde     *time.Time `json:"desde,omitempty"`
	Hasta     *time.Time `json:"hasta,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
}

// Export job states.
const (
	ExportStatusQueued     = "queued"
	ExportStatusProcessing = "processing"
	ExportStatusCompleted  = "completed"
	ExportStatusFailed     = "failed"
)

// Export tracks an asynchronous export job and, once completed, where the
// generated file was written.
type Export struct {
	ID          string       `json:"id"`
	Format      string       `json:"formato"`
	Status      string       `json:"status"`
	Filter      ReportFilter `json:"filtros"`
	FilePath    string       `json:"file_path,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// StoreStats is the aggregate view over stored reports served by the stats
// endpoint and embedded in generated summaries.
type StoreStats struct {
	TotalReports       int            `json:"total_denuncias"`
	ByCategory         map[string]int `json:"por_categoria"`
	ByStatus           map[string]int `json:"por_estado"`
	ByUrgency          map[string]int `json:"por_urgencia"`
	ImmediateAttention int            `json:"atencion_inmediata"`
	SpamReports        int            `json:"denuncias_spam"`
	AverageVeracity    float64        `json:"veracidad_promedio"`
}

package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/zombar/denuncias/internal/models"
)

// Version identifies the rule set baked into this engine build.
const Version = "2.0 - Mejorado"

// Engine is the deterministic rule-based analyzer for denuncia messages.
// All scoring runs over static pattern tables, so the same input always
// produces the same assessment (modulo the analysis timestamp). An Engine
// is safe for concurrent use.
type Engine struct {
	lib *Library
}

// New creates an Engine backed by the default pattern tables.
func New() *Engine {
	return &Engine{lib: defaultLibrary}
}

// NewWithLibrary creates an Engine that scores against a custom pattern
// library.
func NewWithLibrary(lib *Library) *Engine {
	return &Engine{lib: lib}
}

// message carries the two views of a report text every scorer needs: the
// whitespace-collapsed original and its lower-cased form.
type message struct {
	text  string
	lower string
}

func newMessage(raw string) message {
	collapsed := strings.Join(strings.Fields(raw), " ")
	return message{text: collapsed, lower: strings.ToLower(collapsed)}
}

// Analyze runs the full rule pipeline over a report message: urgency,
// category, priority, entities, sentiment, evidence, alerts and
// recommendations. It never fails; a panic in any scorer is captured and
// reported through the Processed and Error fields so a malformed report
// cannot take down a worker.
func (e *Engine) Analyze(text string) (result models.Assessment) {
	defer func() {
		if r := recover(); r != nil {
			result = models.Assessment{
				AnalyzedAt: time.Now().UTC(),
				Error:      fmt.Sprintf("análisis fallido: %v", r),
			}
		}
	}()

	m := newMessage(text)

	_, tier := e.scoreUrgency(m)
	category := e.classifyCategory(m)
	entities := e.extractEntities(m)
	sentiment := e.profileSentiment(m)
	evidence := e.evaluateEvidence(m)
	alerts := e.generateAlerts(m, tier)
	priority := scorePriority(m, tier)

	return models.Assessment{
		AnalyzedAt: time.Now().UTC(),
		Urgency: models.UrgencyAssessment{
			Level:       tier.String(),
			Rank:        tier.Rank(),
			Description: tier.Description(),
		},
		Category: category,
		Priority: models.PriorityAssessment{
			Score:         priority,
			Level:         priorityLevel(priority),
			Justification: priorityJustification(priority),
		},
		Entities:                   entities,
		Sentiment:                  sentiment,
		Evidence:                   evidence,
		Alerts:                     alerts,
		Recommendations:            e.Recommend(tier, category.Suggested, evidence, alerts),
		RequiresImmediateAttention: requiresImmediate(tier, alerts),
		VeracityScore:              veracityScore(evidence, entities),
		ExecutiveSummary:           executiveSummary(m, tier, category.Suggested, alerts),
		Processed:                  true,
	}
}

// Info describes the engine for the capabilities endpoint.
func (e *Engine) Info() models.EngineInfo {
	return models.EngineInfo{
		Version:       Version,
		Categories:    e.lib.CategoryNames(),
		UrgencyLevels: UrgencyTierNames(),
		AlertKinds:    AlertKindNames(),
		Capabilities: []string{
			"Detección de urgencia avanzada",
			"Análisis de sentimientos",
			"Extracción de entidades",
			"Alertas automáticas",
			"Recomendaciones inteligentes",
			"Evaluación de evidencias",
		},
	}
}

// scorePriority builds the 1-5 triage score: the urgency rank plus capped
// aggravating factors for evidence, recency, people involved and
// organizational reach.
func scorePriority(m message, tier UrgencyTier) int {
	factors := 0.0
	factors += capped(float64(len(reEvidenceFactor.FindAllString(m.lower, -1)))*0.5, 1)
	factors += capped(float64(len(reRecencyFactor.FindAllString(m.lower, -1)))*0.3, 0.8)
	factors += capped(float64(len(rePeopleFactor.FindAllString(m.lower, -1)))*0.2, 0.6)
	factors += capped(float64(len(reOrgFactor.FindAllString(m.lower, -1)))*0.3, 0.7)

	total := float64(tier.Rank()) + factors
	if total > 5 {
		total = 5
	}
	return int(math.Round(total))
}

func capped(v, ceiling float64) float64 {
	if v > ceiling {
		return ceiling
	}
	return v
}

func priorityLevel(score int) string {
	switch {
	case score >= 5:
		return "EMERGENCIA"
	case score >= 4:
		return "ALTA"
	case score >= 3:
		return "MEDIA"
	case score >= 2:
		return "BAJA"
	default:
		return "MÍNIMA"
	}
}

func priorityJustification(score int) string {
	switch score {
	case 5:
		return "Múltiples factores críticos detectados"
	case 4:
		return "Urgencia alta con factores agravantes"
	case 3:
		return "Situación importante que requiere atención"
	case 2:
		return "Caso que merece seguimiento regular"
	case 1:
		return "Situación menor para proceso normal"
	default:
		return "Evaluación estándar"
	}
}

func requiresImmediate(tier UrgencyTier, alerts []models.Alert) bool {
	if tier.Rank() >= 4 {
		return true
	}
	for _, a := range alerts {
		if a.Priority == AlertPriorityCritica || a.Priority == AlertPriorityAlta {
			return true
		}
	}
	return false
}

// veracityScore normalizes evidence strength plus entity specificity into
// [0, 1]: more concrete times, places and names make a report easier to
// corroborate.
func veracityScore(evidence models.EvidenceAssessment, ents models.Entities) float64 {
	total := evidence.Score +
		float64(len(ents.Times))*0.2 +
		float64(len(ents.Places))*0.3 +
		float64(len(ents.People))*0.1
	if total > 10 {
		total = 10
	}
	return round2(total / 10)
}

func executiveSummary(m message, tier UrgencyTier, category string, alerts []models.Alert) string {
	words := len(strings.Fields(m.text))

	var b strings.Builder
	fmt.Fprintf(&b, "Denuncia de %s con urgencia %s",
		strings.ReplaceAll(category, "_", " "), strings.ToLower(tier.String()))

	kinds := make(map[string]bool, len(alerts))
	for _, a := range alerts {
		kinds[a.Kind] = true
	}
	if kinds[AlertUrgenciaCritica] {
		b.WriteString(" - REQUIERE ATENCIÓN INMEDIATA")
	} else if kinds[AlertContenidoViolento] {
		b.WriteString(" - Contiene indicadores de violencia")
	}

	fmt.Fprintf(&b, ". Mensaje de %d palabras", words)
	switch {
	case words > 200:
		b.WriteString(" con descripción detallada")
	case words < 50:
		b.WriteString(" - requiere más información")
	}
	return b.String()
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

package engine

import (
	"fmt"

	"github.com/zombar/denuncias/internal/models"
)

// Alert trigger thresholds.
const (
	urgencyAlertMinRank = 3
	violentPatternsMin  = 2
	directThreatsMin    = 1
	riskIndicatorsMin   = 2
	solidEvidenceMin    = 3
)

// GenerateAlerts evaluates the automatic alert rules for a message at the
// given urgency tier. Alerts come back in rule order, so downstream
// consumers see urgency flags before evidence flags.
func (e *Engine) GenerateAlerts(text string, tier UrgencyTier) []models.Alert {
	return e.generateAlerts(newMessage(text), tier)
}

func (e *Engine) generateAlerts(m message, tier UrgencyTier) []models.Alert {
	alerts := make([]models.Alert, 0, 5)

	if tier.Rank() >= urgencyAlertMinRank {
		alerts = append(alerts, models.Alert{
			Kind:            AlertUrgenciaCritica,
			Message:         fmt.Sprintf("Denuncia con urgencia %s - Requiere atención inmediata", tier),
			Priority:        AlertPriorityAlta,
			SuggestedAction: "Contactar inmediatamente al denunciante o autoridades competentes",
		})
	}

	// Counts distinct violence patterns, not total occurrences.
	violent := 0
	for _, re := range e.lib.violence {
		if re.MatchString(m.lower) {
			violent++
		}
	}
	if violent >= violentPatternsMin {
		alerts = append(alerts, models.Alert{
			Kind:            AlertContenidoViolento,
			Message:         "Contenido con indicadores de violencia detectados",
			Priority:        AlertPriorityAlta,
			SuggestedAction: "Evaluar riesgo para la seguridad personal del denunciante",
		})
	}

	if len(e.lib.directThreats.FindAllString(m.lower, -1)) >= directThreatsMin {
		alerts = append(alerts, models.Alert{
			Kind:            AlertAmenazaDirecta,
			Message:         "Posible amenaza directa identificada",
			Priority:        AlertPriorityCritica,
			SuggestedAction: "Notificar a seguridad y considerar medidas de protección",
		})
	}

	if len(e.lib.riskIndicators.FindAllString(m.lower, -1)) >= riskIndicatorsMin {
		alerts = append(alerts, models.Alert{
			Kind:            AlertSituacionRiesgo,
			Message:         "Situación de riesgo potencial detectada",
			Priority:        AlertPriorityMedia,
			SuggestedAction: "Evaluar medidas de seguridad preventivas",
		})
	}

	if len(e.lib.evidenceKeywords.FindAllString(m.lower, -1)) >= solidEvidenceMin {
		alerts = append(alerts, models.Alert{
			Kind:            AlertEvidenciaSolida,
			Message:         "Denuncia con evidencia sólida disponible",
			Priority:        AlertPriorityMedia,
			SuggestedAction: "Priorizar para investigación detallada",
		})
	}

	return alerts
}

// AlertKindNames returns the alert identifiers in rule order.
func AlertKindNames() []string {
	return []string{
		AlertUrgenciaCritica,
		AlertContenidoViolento,
		AlertAmenazaDirecta,
		AlertSituacionRiesgo,
		AlertEvidenciaSolida,
	}
}

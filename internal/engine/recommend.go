package engine

import (
	"github.com/zombar/denuncias/internal/models"
)

// Recommend builds the reviewer action list for an analyzed report from its
// urgency, category, evidence grade and raised alerts. The list keeps rule
// order and drops duplicate entries.
func (e *Engine) Recommend(tier UrgencyTier, category string, evidence models.EvidenceAssessment, alerts []models.Alert) []string {
	var recs []string

	switch {
	case tier.Rank() >= 4:
		recs = append(recs,
			"🚨 ACCIÓN INMEDIATA: Contactar al denunciante en las próximas 2 horas",
			"📞 Notificar a autoridades competentes si hay riesgo inmediato")
	case tier.Rank() >= 3:
		recs = append(recs,
			"⏰ Responder dentro de las próximas 24 horas",
			"🔍 Iniciar investigación preliminar")
	}

	switch category {
	case CategoryViolencia:
		recs = append(recs,
			"🛡️ Evaluar necesidad de medidas de protección",
			"👥 Involucrar a recursos humanos y seguridad")
	case CategoryFraude:
		recs = append(recs,
			"💰 Revisar registros financieros relacionados",
			"🔒 Asegurar documentación contable")
	case CategoryAcosoLaboral:
		recs = append(recs,
			"📋 Documentar patrones de comportamiento",
			"🤝 Ofrecer apoyo psicológico al denunciante")
	}

	if evidence.Credibility == CredibilityAlta {
		recs = append(recs,
			"📁 Recopilar y preservar evidencias mencionadas",
			"⚖️ Considerar para proceso formal de investigación")
	} else if evidence.NeedsMoreEvidence {
		recs = append(recs,
			"🔍 Solicitar evidencia adicional al denunciante",
			"👥 Buscar testigos o fuentes corroborativas")
	}

	for _, alert := range alerts {
		switch alert.Priority {
		case AlertPriorityCritica:
			recs = append(recs, "🚨 CRÍTICO: "+alert.SuggestedAction)
		case AlertPriorityAlta:
			recs = append(recs, "⚠️ ALTA: "+alert.SuggestedAction)
		}
	}

	recs = append(recs,
		"📝 Registrar todas las acciones tomadas",
		"🔄 Programar seguimiento según cronograma establecido")

	return dedupe(recs)
}

package engine

import (
	"regexp"

	"github.com/zombar/denuncias/internal/models"
)

// Specificity and priority-factor patterns are fixed; they grade how a
// message is written rather than what it reports.
var (
	reHourSpec  = regexp.MustCompile(`\d{1,2}[:/]\d{1,2}`)
	reDateSpec  = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)
	rePlaceSpec = regexp.MustCompile(`(?i)\b(sala|oficina|piso)\s*\d+\b`)

	reEvidenceFactor = regexp.MustCompile(`(?i)\b(prueba|evidencia|documento|testigo)\b`)
	reRecencyFactor  = regexp.MustCompile(`(?i)\b(ahora|hoy|ayer|esta\s*(mañana|tarde))\b`)
	rePeopleFactor   = regexp.MustCompile(`(?i)\b(persona|gente|todos|muchos|varios)\b`)
	reOrgFactor      = regexp.MustCompile(`(?i)\b(empresa|organización|departamento|todos)\b`)
)

// Evidence score thresholds.
const (
	evidenceAltaMin  = 5
	evidenceMediaMin = 3
	evidenceBajaMin  = 1

	// Below this score the report needs more supporting evidence.
	evidenceSufficientMin = 2
)

// EvaluateEvidence grades the evidence mentioned in a message: occurrence
// counts per evidence kind plus half a point for each concrete time, date
// or numbered location.
func (e *Engine) EvaluateEvidence(text string) models.EvidenceAssessment {
	return e.evaluateEvidence(newMessage(text))
}

func (e *Engine) evaluateEvidence(m message) models.EvidenceAssessment {
	types := make(map[string]int)
	total := 0.0
	for _, et := range e.lib.evidenceTypes {
		if n := len(et.re.FindAllString(m.lower, -1)); n > 0 {
			types[et.name] = n
			total += float64(n)
		}
	}

	specificity := len(reHourSpec.FindAllString(m.text, -1)) +
		len(reDateSpec.FindAllString(m.text, -1)) +
		len(rePlaceSpec.FindAllString(m.lower, -1))
	total += float64(specificity) * 0.5

	credibility := CredibilityMuyBaja
	switch {
	case total >= evidenceAltaMin:
		credibility = CredibilityAlta
	case total >= evidenceMediaMin:
		credibility = CredibilityMedia
	case total >= evidenceBajaMin:
		credibility = CredibilityBaja
	}

	return models.EvidenceAssessment{
		Types:             types,
		Score:             round1(total),
		Credibility:       credibility,
		Specificity:       specificity,
		NeedsMoreEvidence: total < evidenceSufficientMin,
	}
}

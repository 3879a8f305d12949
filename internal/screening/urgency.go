package screening

import (
	"strings"

	"github.com/zombar/denuncias/internal/models"
)

// urgencyCriticalMin is the score at which a denuncia demands immediate
// attention regardless of everything else.
const urgencyCriticalMin = 0.8

// Matched as substrings of the lowered text, weakest group first.
var (
	urgencyMarkers = []string{
		"urgente", "inmediato", "ahora", "ya", "rápido",
		"peligro", "amenaza", "violencia", "acoso sexual",
	}

	ongoingMarkers = []string{
		"está pasando", "ocurriendo ahora", "en este momento", "actualmente",
	}

	graveMarkers = []string{
		"violación", "amenaza de muerte", "arma", "violencia física", "secuestro",
	}
)

// AssessUrgency makes a quick urgency estimate from marker words alone.
// Signals of an ongoing situation and grave terms weigh more than the
// generic urgency vocabulary.
func (s *Screener) AssessUrgency(text string) models.UrgencyCheck {
	lower := strings.ToLower(text)

	var score float64
	indicators := []string{}

	for _, marker := range urgencyMarkers {
		if strings.Contains(lower, marker) {
			score += 0.2
			indicators = append(indicators, marker)
		}
	}
	for _, marker := range ongoingMarkers {
		if strings.Contains(lower, marker) {
			score += 0.3
			indicators = append(indicators, marker)
		}
	}
	for _, marker := range graveMarkers {
		if strings.Contains(lower, marker) {
			score += 0.4
			indicators = append(indicators, marker)
		}
	}

	capped := score
	if capped > 1 {
		capped = 1
	}

	return models.UrgencyCheck{
		Score:      capped,
		Level:      urgencyLevel(score),
		Indicators: indicators,
	}
}

func urgencyLevel(score float64) string {
	switch {
	case score >= urgencyCriticalMin:
		return UrgencyCritica
	case score >= 0.5:
		return UrgencyAlta
	case score >= 0.3:
		return UrgencyMedia
	default:
		return UrgencyBaja
	}
}

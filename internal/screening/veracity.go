package screening

import (
	"regexp"
	"strings"

	"github.com/zombar/denuncias/internal/models"
)

const veracityBase = 0.5

// Markers are matched as plain substrings of the lowered text.
var (
	hedgeMarkers = []string{
		"supuestamente", "creo que", "tal vez", "posiblemente",
		"no estoy seguro", "rumor", "chisme", "dicen que",
	}

	certaintyMarkers = []string{
		"vi", "escuché", "presencié", "fue testigo", "ocurrió", "sucedió",
	}
)

// Concrete details raise credibility: dates, times, named places and
// references to people.
var (
	reDetailDate   = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`)
	reMonthName    = regexp.MustCompile(`\b(enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|octubre|noviembre|diciembre)\b`)
	reDetailHour   = regexp.MustCompile(`\b\d{1,2}:\d{2}\b`)
	reDetailPlace  = regexp.MustCompile(`\b(oficina|sala|piso|edificio|calle|avenida)\s+\w+`)
	reDetailPerson = regexp.MustCompile(`\b(señor|señora|licenciado|doctor|ing\.|sr\.|sra\.)\s+\w+`)
)

// AssessVeracity estimates how credible the message reads. Certainty
// markers and concrete details push the score up, hedging pushes it
// down, and very short messages are penalized.
func (s *Screener) AssessVeracity(text string) models.VeracityCheck {
	lower := strings.ToLower(text)

	var hedges, certainty int
	for _, marker := range hedgeMarkers {
		if strings.Contains(lower, marker) {
			hedges++
		}
	}
	for _, marker := range certaintyMarkers {
		if strings.Contains(lower, marker) {
			certainty++
		}
	}

	details := 0
	if reDetailDate.MatchString(text) || reMonthName.MatchString(lower) {
		details++
	}
	if reDetailHour.MatchString(text) {
		details++
	}
	if reDetailPlace.MatchString(lower) {
		details++
	}
	if reDetailPerson.MatchString(lower) {
		details++
	}

	score := veracityBase
	score += float64(certainty) * 0.15
	score -= float64(hedges) * 0.2
	score += float64(details) * 0.1

	words := len(strings.Fields(text))
	switch {
	case words >= 20 && words <= 200:
		score += 0.1
	case words < 10:
		score -= 0.2
	}

	return models.VeracityCheck{
		Score:            clamp01(score),
		Level:            veracityLevel(score),
		CertaintyMarkers: certainty,
		HedgeMarkers:     hedges,
		SpecificDetails:  details,
		WordCount:        words,
	}
}

func veracityLevel(score float64) string {
	switch {
	case score >= 0.8:
		return VeracityMuyAlta
	case score >= 0.6:
		return VeracityAlta
	case score >= 0.4:
		return VeracityMedia
	case score >= 0.2:
		return VeracityBaja
	default:
		return VeracityMuyBaja
	}
}

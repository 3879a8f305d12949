package engine

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// UrgencyTier is the urgency classification of a report, ordered from BAJA
// (1) to EMERGENCIA (5).
type UrgencyTier int

const (
	UrgencyBaja UrgencyTier = iota + 1
	UrgencyMedia
	UrgencyAlta
	UrgencyCritica
	UrgencyEmergencia
)

func (t UrgencyTier) String() string {
	switch t {
	case UrgencyBaja:
		return "BAJA"
	case UrgencyMedia:
		return "MEDIA"
	case UrgencyAlta:
		return "ALTA"
	case UrgencyCritica:
		return "CRITICA"
	case UrgencyEmergencia:
		return "EMERGENCIA"
	}
	return "DESCONOCIDA"
}

// Rank returns the numeric ordinal of the tier (1-5).
func (t UrgencyTier) Rank() int {
	return int(t)
}

// Description returns the human-readable meaning of the tier.
func (t UrgencyTier) Description() string {
	switch t {
	case UrgencyBaja:
		return "Situación que puede esperar proceso normal"
	case UrgencyMedia:
		return "Requiere atención en tiempo razonable"
	case UrgencyAlta:
		return "Necesita atención prioritaria"
	case UrgencyCritica:
		return "Requiere acción inmediata"
	case UrgencyEmergencia:
		return "EMERGENCIA - Acción inmediata crítica"
	}
	return "Nivel no definido"
}

// UrgencyTierNames returns the tier names in ascending order.
func UrgencyTierNames() []string {
	names := make([]string, 0, 5)
	for t := UrgencyBaja; t <= UrgencyEmergencia; t++ {
		names = append(names, t.String())
	}
	return names
}

// Urgency score breakpoints. A message at or above a breakpoint lands in
// that tier.
const (
	urgencyEmergenciaMin = 12
	urgencyCriticaMin    = 8
	urgencyAltaMin       = 5
	urgencyMediaMin      = 2
)

// ScoreUrgency computes the weighted urgency score for a message and the
// tier it falls in. Every contribution is non-negative, so adding urgent
// content to a message never lowers its score.
func (e *Engine) ScoreUrgency(text string) (float64, UrgencyTier) {
	return e.scoreUrgency(newMessage(text))
}

func (e *Engine) scoreUrgency(m message) (float64, UrgencyTier) {
	score := 0.0

	for _, re := range e.lib.urgency {
		score += float64(len(re.FindAllString(m.lower, -1))) * e.lib.urgencyWeight
	}
	for _, re := range e.lib.violence {
		score += float64(len(re.FindAllString(m.lower, -1))) * e.lib.violenceWeight
	}

	// Repeated critical keywords count once per occurrence, anywhere in a
	// word.
	for _, kw := range e.lib.criticalKeywords {
		score += float64(strings.Count(m.lower, kw)) * e.lib.criticalKeywordWeight
	}

	if strings.Count(m.text, "!") >= 3 {
		score += 2
	}
	if countShoutedWords(m.text) >= 3 {
		score += 1
	}

	return score, tierForScore(score)
}

func tierForScore(score float64) UrgencyTier {
	switch {
	case score >= urgencyEmergenciaMin:
		return UrgencyEmergencia
	case score >= urgencyCriticaMin:
		return UrgencyCritica
	case score >= urgencyAltaMin:
		return UrgencyAlta
	case score >= urgencyMediaMin:
		return UrgencyMedia
	default:
		return UrgencyBaja
	}
}

func countShoutedWords(text string) int {
	n := 0
	for _, w := range strings.Fields(text) {
		if utf8.RuneCountInString(w) > 2 && isShouted(w) {
			n++
		}
	}
	return n
}

// isShouted reports whether a token is written entirely in capitals: at
// least one letter and no lower-case letters.
func isShouted(w string) bool {
	hasUpper := false
	for _, r := range w {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			hasUpper = true
		}
	}
	return hasUpper
}

// Package screening runs the fast pre-analysis pass over an incoming
// denuncia: spam detection, a linguistic veracity estimate and a quick
// urgency probe. It is cheap enough to run synchronously on submission,
// before the full engine analysis is queued, so invalid or critical
// messages can be routed immediately.
package screening

import (
	"time"
	"unicode/utf8"

	"github.com/zombar/denuncias/internal/models"
)

// Veracity levels emitted by AssessVeracity, highest to lowest.
const (
	VeracityMuyAlta = "MUY_ALTA"
	VeracityAlta    = "ALTA"
	VeracityMedia   = "MEDIA"
	VeracityBaja    = "BAJA"
	VeracityMuyBaja = "MUY_BAJA"
)

// Urgency levels emitted by AssessUrgency. These are coarser than the
// tiers of the full analysis and only drive routing.
const (
	UrgencyCritica = "CRÍTICA"
	UrgencyAlta    = "ALTA"
	UrgencyMedia   = "MEDIA"
	UrgencyBaja    = "BAJA"
)

// previewLength caps the echoed text in screening results.
const previewLength = 100

// Screener performs the pre-analysis checks. The zero value is not
// usable; construct with New.
type Screener struct{}

// New returns a ready Screener.
func New() *Screener {
	return &Screener{}
}

// Screen runs all checks over the message and consolidates them into a
// routing decision: whether the denuncia is valid, whether it needs a
// human reviewer and whether it needs attention right now.
func (s *Screener) Screen(text string) models.ScreeningResult {
	spam := s.CheckSpam(text)
	veracity := s.AssessVeracity(text)
	urgency := s.AssessUrgency(text)

	validity := 0.8
	if spam.IsSpam {
		validity = 1.0 - spam.Confidence
	}

	lowVeracity := veracity.Level == VeracityBaja || veracity.Level == VeracityMuyBaja

	return models.ScreeningResult{
		ScreenedAt:     time.Now().UTC(),
		TextPreview:    preview(text),
		OriginalLength: utf8.RuneCountInString(text),

		Spam:     spam,
		Veracity: veracity,
		Urgency:  urgency,

		IsValid:                    !spam.IsSpam,
		ValidityConfidence:         validity,
		RequiresHumanReview:        spam.IsSpam || lowVeracity || urgency.Level == UrgencyCritica,
		RequiresImmediateAttention: urgency.Score >= urgencyCriticalMin,
	}
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength]) + "..."
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

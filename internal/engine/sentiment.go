package engine

import (
	"strings"

	"github.com/zombar/denuncias/internal/models"
)

// Per-emotion counts cap here so a single repeated word cannot dominate the
// intensity total.
const emotionCountCap = 5

// ProfileSentiment builds the emotional profile of a message: capped counts
// per detected emotion, overall polarity and an intensity tier. Reports
// mentioning fear, or with enough emotional load overall, are flagged as
// needing emotional support.
func (e *Engine) ProfileSentiment(text string) models.SentimentAssessment {
	return e.profileSentiment(newMessage(text))
}

func (e *Engine) profileSentiment(m message) models.SentimentAssessment {
	emotions := make(map[string]int)
	total := 0
	for _, group := range e.lib.emotions {
		n := 0
		for _, re := range group.patterns {
			n += len(re.FindAllString(m.lower, -1))
		}
		if n == 0 {
			continue
		}
		if n > emotionCountCap {
			n = emotionCountCap
		}
		emotions[group.name] = n
		total += n
	}

	neg, pos := 0, 0
	for _, w := range e.lib.negativeWords {
		if strings.Contains(m.lower, w) {
			neg++
		}
	}
	for _, w := range e.lib.positiveWords {
		if strings.Contains(m.lower, w) {
			pos++
		}
	}
	polarity := "neutral"
	switch {
	case neg > pos:
		polarity = "negativa"
	case pos > neg:
		polarity = "positiva"
	}

	intensity := "baja"
	switch {
	case total > 5:
		intensity = "alta"
	case total > 2:
		intensity = "media"
	}

	_, fear := emotions[emotionFear]
	return models.SentimentAssessment{
		Emotions:              emotions,
		Polarity:              polarity,
		Intensity:             intensity,
		NeedsEmotionalSupport: total >= 4 || fear,
	}
}

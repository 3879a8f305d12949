package screening

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/zombar/denuncias/internal/models"
)

// Length bounds for a plausible denuncia, in runes of the trimmed text.
const (
	minTextLength = 10
	maxTextLength = 5000
)

const (
	spamThreshold     = 0.6
	maxSpamConfidence = 0.95
)

var (
	reTestWords        = regexp.MustCompile(`\b(test|testing|prueba)\b`)
	reTrailingGreeting = regexp.MustCompile(`\b(hola|hello|hi)\s*$`)
	reKeyboardMash     = regexp.MustCompile(`\b(asdf|qwerty|123456)\b`)
	rePunctuationOnly  = regexp.MustCompile(`^\s*[.,;!?]{2,}\s*$`)
	reGreetingOnly     = regexp.MustCompile(`^\s*(hola|hello|hi|buenas|good)\s*[.,!]?\s*$`)
	reSpecialChars     = regexp.MustCompile(`[!@#$%^&*()_+={}\[\]|\\:";'<>?,./-]`)
)

// spamProbes flag content that looks like a test message rather than a
// report. The repeated-character probe is a hand-rolled scan because RE2
// has no backreferences.
var spamProbes = []struct {
	name  string
	match func(string) bool
}{
	{"palabras de prueba", reTestWords.MatchString},
	{"saludo al final", reTrailingGreeting.MatchString},
	{"caracteres repetidos", hasRepeatedLead},
	{"texto de teclado", reKeyboardMash.MatchString},
	{"solo puntuación", rePunctuationOnly.MatchString},
}

// CheckSpam decides whether the message looks like noise: too short or
// long, test phrases, keyboard mashing, bare greetings or mostly
// punctuation. Each signal adds to the score; 0.6 or more marks spam.
func (s *Screener) CheckSpam(text string) models.SpamCheck {
	lower := strings.TrimSpace(strings.ToLower(text))

	if utf8.RuneCountInString(lower) < minTextLength {
		return models.SpamCheck{IsSpam: true, Score: 0.9, Confidence: 0.9, Reasons: "Texto demasiado corto"}
	}
	if utf8.RuneCountInString(lower) > maxTextLength {
		return models.SpamCheck{IsSpam: true, Score: 0.8, Confidence: 0.8, Reasons: "Texto excesivamente largo"}
	}

	var score float64
	var reasons []string

	for _, probe := range spamProbes {
		if probe.match(lower) {
			score += 0.3
			reasons = append(reasons, "Patrón de prueba detectado: "+probe.name)
		}
	}

	words := strings.Fields(lower)
	if float64(uniqueCount(words)) < float64(len(words))*0.3 {
		score += 0.4
		reasons = append(reasons, "Contenido muy repetitivo")
	}

	if reGreetingOnly.MatchString(lower) {
		score += 0.9
		reasons = append(reasons, "Solo contiene saludo")
	}

	// Special characters are counted on the original text, not the
	// lowered copy, so shouting punctuation is not lost.
	specials := len(reSpecialChars.FindAllString(text, -1))
	if float64(specials) > float64(utf8.RuneCountInString(text))*0.3 {
		score += 0.3
		reasons = append(reasons, "Exceso de caracteres especiales")
	}

	joined := "Contenido válido"
	if len(reasons) > 0 {
		joined = strings.Join(reasons, "; ")
	}

	confidence := score
	if confidence > maxSpamConfidence {
		confidence = maxSpamConfidence
	}

	return models.SpamCheck{
		IsSpam:     score >= spamThreshold,
		Score:      score,
		Confidence: confidence,
		Reasons:    joined,
	}
}

// hasRepeatedLead reports whether the text opens with the same rune five
// or more times in a row.
func hasRepeatedLead(s string) bool {
	first, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return false
	}
	n := 1
	for _, r := range s[size:] {
		if r != first {
			break
		}
		n++
	}
	return n >= 5
}

func uniqueCount(words []string) int {
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[w] = struct{}{}
	}
	return len(seen)
}

package engine

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/zombar/denuncias/internal/models"
)

// connectorWords are capitalized sentence connectors that are not names.
var connectorWords = map[string]bool{
	"que": true, "pero": true, "porque": true, "cuando": true, "donde": true,
}

// ExtractEntities pulls time, place, person and evidence mentions out of a
// message. Matches keep their original casing and first-appearance order,
// with duplicates removed.
func (e *Engine) ExtractEntities(text string) models.Entities {
	return e.extractEntities(newMessage(text))
}

func (e *Engine) extractEntities(m message) models.Entities {
	return models.Entities{
		Times:    dedupe(collectMatches(e.lib.times, m.text)),
		Places:   dedupe(collectMatches(e.lib.places, m.text)),
		People:   dedupe(properNouns(m.text)),
		Evidence: dedupe(collectMatches(e.lib.evidence, m.text)),
	}
}

// properNouns returns capitalized tokens that look like names: not the
// first word of the message, longer than two runes and not a connector.
func properNouns(text string) []string {
	var people []string
	for i, w := range strings.Fields(text) {
		if i == 0 || utf8.RuneCountInString(w) <= 2 {
			continue
		}
		first, _ := utf8.DecodeRuneInString(w)
		if !unicode.IsUpper(first) {
			continue
		}
		if connectorWords[strings.ToLower(w)] {
			continue
		}
		people = append(people, w)
	}
	return people
}

func collectMatches(patterns []*regexp.Regexp, text string) []string {
	var out []string
	for _, re := range patterns {
		out = append(out, re.FindAllString(text, -1)...)
	}
	return out
}

// dedupe removes duplicates, keeping the first occurrence of each value.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

package reports

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// minKeywordLength drops short function words the stop list misses.
	minKeywordLength = 4
	maxKeywords      = 10
)

// Spanish function words skipped during keyword extraction.
var stopWords = map[string]struct{}{
	"el": {}, "la": {}, "de": {}, "que": {}, "y": {}, "a": {}, "en": {},
	"un": {}, "es": {}, "se": {}, "no": {}, "te": {}, "lo": {}, "le": {},
	"da": {}, "su": {}, "por": {}, "son": {}, "con": {}, "para": {},
	"al": {}, "como": {}, "las": {}, "pero": {}, "sus": {}, "me": {},
	"ya": {}, "si": {}, "cuando": {},
}

// Keywords returns the most frequent meaningful words of the text,
// lowered, capped at ten. Ties keep first-appearance order.
func Keywords(text string) []string {
	words := splitWords(strings.ToLower(text))

	type entry struct {
		word  string
		count int
	}
	index := make(map[string]*entry)
	var order []*entry

	for _, w := range words {
		if utf8.RuneCountInString(w) < minKeywordLength {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		e, ok := index[w]
		if !ok {
			e = &entry{word: w}
			index[w] = e
			order = append(order, e)
		}
		e.count++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].count > order[j].count
	})

	limit := len(order)
	if limit > maxKeywords {
		limit = maxKeywords
	}
	out := make([]string, 0, limit)
	for _, e := range order[:limit] {
		out = append(out, e.word)
	}
	return out
}

// splitWords breaks text into runs of letters, digits and underscores,
// the Unicode equivalent of a \w+ scan.
func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

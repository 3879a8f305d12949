package engine

import (
	"sort"
	"strings"

	"github.com/zombar/denuncias/internal/models"
)

// ClassifyCategory scores the message against every category's patterns and
// returns the best match with its confidence and the runner-up categories.
// When nothing matches the category is "otros" with a neutral confidence of
// 0.5.
func (e *Engine) ClassifyCategory(text string) models.CategoryAssessment {
	return e.classifyCategory(newMessage(text))
}

func (e *Engine) classifyCategory(m message) models.CategoryAssessment {
	scores := e.categoryScores(m)

	best := -1
	bestScore := 0.0
	for i := range e.lib.categories {
		if scores[i] > bestScore {
			best = i
			bestScore = scores[i]
		}
	}
	if best < 0 {
		return models.CategoryAssessment{
			Suggested:    CategoryOtros,
			Confidence:   0.5,
			Alternatives: []string{},
		}
	}

	winner := e.lib.categories[best].name
	return models.CategoryAssessment{
		Suggested:    winner,
		Confidence:   e.categoryConfidence(m, best),
		Alternatives: e.alternativeCategories(m, winner),
	}
}

// categoryScores returns the bonus-adjusted score per category, indexed in
// library order. Context bonuses apply on substring presence even when no
// word-bounded pattern matched.
func (e *Engine) categoryScores(m message) []float64 {
	scores := make([]float64, len(e.lib.categories))
	for i, cat := range e.lib.categories {
		for _, re := range cat.patterns {
			scores[i] += float64(len(re.FindAllString(m.lower, -1)))
		}
	}
	for _, b := range e.lib.bonuses {
		for i, cat := range e.lib.categories {
			if cat.name != b.category {
				continue
			}
			for _, w := range b.words {
				if strings.Contains(m.lower, w) {
					scores[i] += b.bonus
					break
				}
			}
		}
	}
	return scores
}

// categoryConfidence normalizes the raw pattern match count (bonuses
// excluded) against the category's pattern count, clamped to [0, 1].
func (e *Engine) categoryConfidence(m message, idx int) float64 {
	cat := e.lib.categories[idx]
	matches := 0
	for _, re := range cat.patterns {
		matches += len(re.FindAllString(m.lower, -1))
	}
	conf := float64(matches) / float64(len(cat.patterns))
	if conf > 1 {
		conf = 1
	}
	return round2(conf)
}

// alternativeCategories ranks every non-winning category with at least one
// raw pattern match, highest first, capped at three. Ties keep library
// order.
func (e *Engine) alternativeCategories(m message, winner string) []string {
	type ranked struct {
		name  string
		score int
	}
	var alts []ranked
	for _, cat := range e.lib.categories {
		if cat.name == winner {
			continue
		}
		n := 0
		for _, re := range cat.patterns {
			n += len(re.FindAllString(m.lower, -1))
		}
		if n > 0 {
			alts = append(alts, ranked{name: cat.name, score: n})
		}
	}
	sort.SliceStable(alts, func(i, j int) bool { return alts[i].score > alts[j].score })
	if len(alts) > 3 {
		alts = alts[:3]
	}

	names := make([]string, len(alts))
	for i, a := range alts {
		names[i] = a.name
	}
	return names
}

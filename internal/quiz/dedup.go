package quiz

import (
	"strings"
	"unicode"

	"github.com/agext/levenshtein"

	"github.com/hyperjump/studybuddy/internal/models"
)

// dedupe drops questions whose normalized text is at least threshold similar to an
// earlier kept question, including those in prior.
func dedupe(questions []models.Question, prior []models.Question, threshold float64) []models.Question {
	seen := make([]string, 0, len(prior)+len(questions))
	for _, q := range prior {
		seen = append(seen, normalize(q.Question))
	}
	out := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		norm := normalize(q.Question)
		if isNearDuplicate(norm, seen, threshold) {
			continue
		}
		seen = append(seen, norm)
		out = append(out, q)
	}
	return out
}

func isNearDuplicate(s string, seen []string, threshold float64) bool {
	for _, other := range seen {
		if levenshtein.Similarity(s, other, nil) >= threshold {
			return true
		}
	}
	return false
}

// normalize lower-cases s, drops punctuation and collapses whitespace.
func normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

package report

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// Similarity returns 1 - normalized Levenshtein distance between a and b
// after Unicode case folding. Identical strings score 1, two empty strings
// score 1.
func Similarity(a, b string) float64 {
	// Casers are not safe for concurrent use.
	caser := cases.Fold()
	a, b = caser.String(a), caser.String(b)
	if a == b {
		return 1.0
	}

	distance := levenshtein.ComputeDistance(a, b)
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1.0
	}
	return max(0, 1.0-float64(distance)/float64(maxLen))
}

// AnswerDrift measures how much each assistant reply differs from the one
// before it. The result has len(replies)-1 entries, each in [0, 1], where 0
// means the replies are identical.
func AnswerDrift(replies []string) []float64 {
	if len(replies) < 2 {
		return nil
	}
	drift := make([]float64, 0, len(replies)-1)
	for i := 1; i < len(replies); i++ {
		drift = append(drift, 1-Similarity(replies[i-1], replies[i]))
	}
	return drift
}

package analysis

import (
	"strings"
	"unicode"
)

// TextHeuristic turns a free-text answer from the service into a confidence
// in [0,1]. The constants are provisional and tunable.
type TextHeuristic struct {
	Baseline        float64
	CertaintyBoost  float64
	HedgePenalty    float64
	NegationPenalty float64

	CertaintyTerms []string
	HedgeTerms     []string
	NegationTerms  []string
}

// DefaultTextHeuristic returns the reference weights and vocabularies.
func DefaultTextHeuristic() TextHeuristic {
	return TextHeuristic{
		Baseline:        0.6,
		CertaintyBoost:  0.3,
		HedgePenalty:    0.1,
		NegationPenalty: 0.3,
		CertaintyTerms:  []string{"definitely", "clearly", "certainly", "absolutely", "undoubtedly", "obviously", "100%"},
		HedgeTerms:      []string{"maybe", "perhaps", "possibly", "might", "could", "appears", "seems", "likely"},
		NegationTerms:   []string{"no", "not", "never", "none", "without", "isn't", "doesn't", "don't", "cannot", "can't"},
	}
}

// Score applies each adjustment at most once. Empty text carries no evidence.
func (h TextHeuristic) Score(text string) float64 {
	words := words(text)
	if len(words) == 0 {
		return 0
	}

	score := h.Baseline
	if containsAnyWord(words, h.CertaintyTerms) {
		score += h.CertaintyBoost
	}
	if containsAnyWord(words, h.HedgeTerms) {
		score -= h.HedgePenalty
	}
	if containsAnyWord(words, h.NegationTerms) {
		score -= h.NegationPenalty
	}
	return clamp01(score)
}

// TextConfidence scores text with DefaultTextHeuristic.
func TextConfidence(text string) float64 {
	return DefaultTextHeuristic().Score(text)
}

func words(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '%' && r != '\'' && r != '’'
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.ReplaceAll(f, "’", "'")] = struct{}{}
	}
	return set
}

func containsAnyWord(words map[string]struct{}, terms []string) bool {
	for _, t := range terms {
		if _, ok := words[t]; ok {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

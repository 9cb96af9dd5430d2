package features

import (
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
)

// Matcher finds which of a fixed set of terms occur as substrings of its
// inputs, case-insensitively. The automaton keeps per-search state, so
// searches are serialized.
type Matcher struct {
	mu      sync.Mutex
	ac      *ahocorasick.Matcher
	terms   []string
	termIdx map[string][]int
}

// NewMatcher builds an automaton over terms. Empty terms are ignored.
// Duplicate terms map back to every index at which they were supplied.
func NewMatcher(terms []string) *Matcher {
	m := &Matcher{termIdx: make(map[string][]int, len(terms))}
	for i, t := range terms {
		n := Normalize(t)
		if n == "" {
			continue
		}
		if _, ok := m.termIdx[n]; !ok {
			m.terms = append(m.terms, n)
		}
		m.termIdx[n] = append(m.termIdx[n], i)
	}
	if len(m.terms) > 0 {
		m.ac = ahocorasick.NewStringMatcher(m.terms)
	}
	return m
}

// hits returns the original term indices contained in s.
func (m *Matcher) hits(s string) []int {
	if m.ac == nil || s == "" {
		return nil
	}
	m.mu.Lock()
	found := m.ac.Match([]byte(Normalize(s)))
	m.mu.Unlock()

	var out []int
	for _, idx := range found {
		if idx < len(m.terms) {
			out = append(out, m.termIdx[m.terms[idx]]...)
		}
	}
	return out
}

// ContainsAny reports whether any item contains any term.
func (m *Matcher) ContainsAny(items []string) bool {
	for _, item := range items {
		if len(m.hits(item)) > 0 {
			return true
		}
	}
	return false
}

// ContainsAnyInText is ContainsAny over free-text passages.
func (m *Matcher) ContainsAnyInText(texts []string) bool {
	return m.ContainsAny(texts)
}

// firstPositions returns, for each term index, the position of the first
// feature containing it, or -1.
func (m *Matcher) firstPositions(features []string, termCount int) []int {
	first := make([]int, termCount)
	for i := range first {
		first[i] = -1
	}
	for pos, f := range features {
		for _, idx := range m.hits(f) {
			if idx < termCount && first[idx] < 0 {
				first[idx] = pos
			}
		}
	}
	return first
}

// KeywordMatcher scores feature sequences against one weighted keyword list.
type KeywordMatcher struct {
	keywords []domain.Keyword
	matcher  *Matcher
}

// NewKeywordMatcher compiles keywords. The keyword slice is not retained.
func NewKeywordMatcher(keywords []domain.Keyword) *KeywordMatcher {
	kws := make([]domain.Keyword, len(keywords))
	copy(kws, keywords)
	terms := make([]string, len(kws))
	for i, kw := range kws {
		terms[i] = kw.Term
	}
	return &KeywordMatcher{keywords: kws, matcher: NewMatcher(terms)}
}

// Score returns how well features match the keyword list, in [0,1].
//
// Each keyword contributes weight/(1+i) where i is the position of the first
// feature containing it; the sum is divided by min(len(keywords), len(features)).
// Either side empty scores 0.
func (k *KeywordMatcher) Score(features []string) float64 {
	if len(k.keywords) == 0 || len(features) == 0 {
		return 0
	}

	var matches float64
	for i, pos := range k.matcher.firstPositions(features, len(k.keywords)) {
		if pos < 0 {
			continue
		}
		w := k.keywords[i].Weight
		if w <= 0 {
			w = domain.DefaultKeywordWeight
		}
		matches += w / float64(1+pos)
	}

	score := matches / float64(min(len(k.keywords), len(features)))
	return clamp01(score)
}

// MatchScore scores features against keywords without keeping a compiled matcher.
func MatchScore(features []string, keywords []domain.Keyword) float64 {
	return NewKeywordMatcher(keywords).Score(features)
}

// Terms returns a Keyword slice with the default weight for each term.
func Terms(terms ...string) []domain.Keyword {
	kws := make([]domain.Keyword, len(terms))
	for i, t := range terms {
		kws[i] = domain.Keyword{Term: t, Weight: domain.DefaultKeywordWeight}
	}
	return kws
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

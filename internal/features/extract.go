// Package features turns an analysis record into an ordered feature sequence
// and scores keyword sets against it.
package features

import (
	"strings"

	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
)

// Extraction is the result of one pass over an analysis record.
type Extraction struct {
	// Features is the de-duplicated sequence in first-seen order.
	Features []string
	// Tokens is the same stream before de-duplication.
	Tokens []string
}

// Extract collects features in fixed priority order: object labels, action
// labels, audio mention tokens, description tokens, semantic analysis tokens.
// Labels are kept whole; free text is tokenized. A nil record yields an empty
// extraction.
func Extract(record *domain.AnalysisRecord) Extraction {
	if record == nil {
		return Extraction{Features: []string{}, Tokens: []string{}}
	}

	tokens := make([]string, 0, len(record.Objects)+len(record.Actions)+len(record.AudioMentions)*4)
	tokens = appendLabels(tokens, record.Objects)
	tokens = appendLabels(tokens, record.Actions)
	for _, mention := range record.AudioMentions {
		tokens = append(tokens, Tokenize(mention)...)
	}
	tokens = append(tokens, Tokenize(record.Description)...)
	tokens = append(tokens, Tokenize(record.SemanticAnalysis)...)

	return Extraction{Features: dedupe(tokens), Tokens: tokens}
}

func appendLabels(dst, labels []string) []string {
	for _, label := range labels {
		if l := strings.TrimSpace(Normalize(label)); l != "" {
			dst = append(dst, l)
		}
	}
	return dst
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

package features

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// minTokenLength is the shortest token, in runes, kept by Tokenize.
const minTokenLength = 3

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "of": {}, "to": {}, "in": {}, "on": {},
	"with": {}, "for": {}, "at": {}, "by": {}, "as": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"being": {}, "been": {}, "have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {}, "will": {},
	"would": {}, "shall": {}, "should": {}, "can": {}, "could": {}, "may": {}, "might": {}, "must": {},
	"that": {}, "this": {}, "these": {}, "those": {}, "it": {}, "its": {}, "they": {}, "them": {}, "their": {},
	"he": {}, "him": {}, "his": {}, "she": {}, "her": {}, "we": {}, "us": {}, "our": {}, "you": {}, "your": {},
}

// IsStopWord reports whether word is in the fixed stop list. word must already be lowercase.
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

// Normalize lowercases s after NFC composition so that visually identical
// strings compare equal.
func Normalize(s string) string {
	return cases.Lower(language.Und).String(norm.NFC.String(s))
}

// Tokenize lowercases text, splits it on whitespace and drops stop words and
// tokens shorter than three runes.
func Tokenize(text string) []string {
	fields := strings.Fields(Normalize(text))
	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minTokenLength || IsStopWord(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

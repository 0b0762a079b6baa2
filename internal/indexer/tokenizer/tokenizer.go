// Package tokenizer provides the text tokenisation shared by index builds
// and queries. It strips punctuation, splits on whitespace, lower-cases and
// drops Spanish stop-words and single-character pieces. There is no
// stemming: the same text always yields the same terms regardless of
// locale.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var stopWords = map[string]struct{}{
	"de": {}, "la": {}, "el": {}, "y": {}, "a": {}, "en": {},
	"los": {}, "las": {}, "del": {}, "que": {}, "con": {}, "para": {},
	"por": {}, "se": {}, "un": {}, "una": {},
}

// Token represents a single normalised term and its position among the
// surviving terms of the input.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into lowercased Tokens with punctuation and
// stop-words removed. Repeated terms are kept.
func Tokenize(text string) []Token {
	if text == "" {
		return nil
	}
	cleaned := strings.Map(func(r rune) rune {
		if isWordRune(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, text)
	words := strings.Fields(cleaned)
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		term := strings.ToLower(word)
		if utf8.RuneCountInString(term) <= 1 {
			continue
		}
		if IsStopWord(term) {
			continue
		}
		tokens = append(tokens, Token{
			Term:     term,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Terms returns only the term strings of Tokenize(text).
func Terms(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}

// Unique returns terms with repeats removed, keeping first occurrences.
func Unique(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// IsStopWord reports whether the lowercased term is in the stop-word set.
func IsStopWord(term string) bool {
	_, ok := stopWords[term]
	return ok
}

// isWordRune matches letters, numbers and the underscore.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

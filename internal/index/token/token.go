// Package token normalizes raw text into lowercase word tokens for
// lexical scoring.
package token

import (
	"strings"
	"unicode"
)

// minTokenLen is the shortest token kept; anything at or below
// this length is discarded.
const minTokenLen = 3

// Tokenize lowercases text, replaces every character that is neither a word
// character nor whitespace with a space, splits on whitespace, and drops
// tokens shorter than three characters. No stemming, no stopword removal.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if isWord(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= minTokenLen {
			tokens = append(tokens, f)
		}
	}
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

// isWord mirrors the \w character class: letters, digits, underscore.
func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

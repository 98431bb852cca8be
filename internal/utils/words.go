package utils

import (
	"strings"
	"unicode"
)

// WordCount returns the number of whitespace separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// FirstWords returns at most n leading words of s joined by single spaces.
func FirstWords(s string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

// Tokens splits s into lowercase word tokens, dropping punctuation at the
// edges of each word. Inner punctuation is kept so "node.js" and "ci/cd"
// survive as one token.
func Tokens(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
		})
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

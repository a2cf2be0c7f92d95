package textutil

import (
	"regexp"
	"strings"
)

// MaxInputChars caps how much text is ever handed to the model.
const MaxInputChars = 8000

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize collapses whitespace runs (including newlines and tabs) to
// single spaces, trims the ends and truncates to MaxInputChars runes.
// It is idempotent and never fails; empty input yields an empty string.
func Normalize(raw string) string {
	s := whitespaceRe.ReplaceAllString(raw, " ")
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if len(runes) > MaxInputChars {
		s = strings.TrimSpace(string(runes[:MaxInputChars]))
	}

	return s
}

// WordCount reports the number of whitespace-separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

package text

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	punctRe   = regexp.MustCompile(`([?.!,¿])`)
	invalidRe = regexp.MustCompile(`[^a-zA-Z!.?]+`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// Normalize prepares a raw sentence for whitespace tokenization.
// It lowercases, strips diacritics, separates ? . ! , from the preceding
// word, replaces everything outside [a-zA-Z!.?] with a space and collapses
// whitespace runs. Empty input yields empty output.
func Normalize(s string) string {
	s = StripAccents(strings.ToLower(s))

	s = punctRe.ReplaceAllString(s, " ${1}")
	s = invalidRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

// StripAccents decomposes s (NFD) and drops nonspacing marks, so "déjà"
// becomes "deja".
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))

	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}

	return out
}

// Tokenize normalizes s and splits it on whitespace.
func Tokenize(s string) []string {
	return strings.Fields(Normalize(s))
}

package text

import "strings"

// Sentences splits raw input at sentence-ending punctuation (., !, ?),
// keeping runs of terminators such as "?!" or "..." attached to their
// sentence. Text after the last terminator becomes a final sentence. Empty
// segments are dropped.
func Sentences(s string) []string {
	var out []string

	start := 0
	runes := []rune(s)

	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}

		for i+1 < len(runes) && isTerminator(runes[i+1]) {
			i++
		}

		if seg := strings.TrimSpace(string(runes[start : i+1])); seg != "" {
			out = append(out, seg)
		}

		start = i + 1
	}

	if seg := strings.TrimSpace(string(runes[start:])); seg != "" {
		out = append(out, seg)
	}

	return out
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

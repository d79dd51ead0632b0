package compress

import (
	"regexp"
	"strings"
	"unicode"
)

var queryTermPattern = regexp.MustCompile(`[\p{L}\p{N}_]{3,}`)

// SplitSentences splits text at whitespace runs that follow '.', '?' or '!'.
// Sentences are trimmed and empty ones dropped.
func SplitSentences(text string) []string {
	var out []string
	var b strings.Builder
	var prev rune
	inBreak := false
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	for _, r := range text {
		if inBreak {
			if unicode.IsSpace(r) {
				continue
			}
			inBreak = false
		} else if unicode.IsSpace(r) && (prev == '.' || prev == '?' || prev == '!') {
			flush()
			inBreak = true
			prev = r
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	flush()
	return out
}

// QueryTerms returns the lowercased words of at least three characters in query.
func QueryTerms(query string) []string {
	words := queryTermPattern.FindAllString(query, -1)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return words
}

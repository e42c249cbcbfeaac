package safety

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxInputLength caps sanitized input, in runes.
const MaxInputLength = 2000

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// Sanitize strips HTML tags, collapses whitespace runs to single spaces,
// and truncates to MaxInputLength runes.
func Sanitize(input string) string {
	cleaned := htmlTagPattern.ReplaceAllString(input, "")
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	runes := []rune(cleaned)
	if len(runes) > MaxInputLength {
		cleaned = string(runes[:MaxInputLength])
	}
	return cleaned
}

// normalizeInput prepares input for pattern matching: zero-width and
// combining characters are dropped so they cannot split a matched word,
// and whitespace runs collapse to single spaces.
func normalizeInput(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.Cf, r) || unicode.Is(unicode.Mn, r) {
			continue
		}
		if unicode.IsSpace(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

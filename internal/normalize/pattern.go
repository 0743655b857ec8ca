package normalize

import (
	"regexp"
	"strings"
)

var (
	hashDigits     = regexp.MustCompile(`#\d{3,}`)
	numericToken   = regexp.MustCompile(`\b\w*\d{3,}\w*\b`)
	wildcardRun    = regexp.MustCompile(`\*(?:\s+\*)+`)
	minLiteralRune = 3
)

// ExtractPattern generalizes a description into a lowercase wildcard pattern.
// Tokens holding three or more consecutive digits become "*"; shorter
// numbers such as "66" in "Route 66" are kept.
func ExtractPattern(description string) string {
	text := strings.TrimSpace(description)
	if text == "" {
		return ""
	}

	text = hashDigits.ReplaceAllString(text, "#*")
	text = numericToken.ReplaceAllString(text, "*")
	text = wildcardRun.ReplaceAllString(text, "*")
	text = whitespaceRun.ReplaceAllString(text, " ")

	return strings.ToLower(strings.TrimSpace(text))
}

// IsDegeneratePattern reports whether p is too generic to be a rule:
// empty, only wildcards, or fewer than three literal characters.
func IsDegeneratePattern(p string) bool {
	literal := 0
	for _, r := range p {
		if r == '*' || r == ' ' || r == '\t' {
			continue
		}
		literal++
	}
	return literal < minLiteralRune
}

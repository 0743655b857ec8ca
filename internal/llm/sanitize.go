package llm

import (
	"regexp"
	"unicode/utf8"
)

// MaxDescriptionLength bounds descriptions sent to a provider.
const MaxDescriptionLength = 500

type redaction struct {
	re          *regexp.Regexp
	replacement string
}

// redactions run in order.
var redactions = []redaction{
	{regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`), "[CARD]"},
	{regexp.MustCompile(`\b\d{8,17}\b`), "[ACCT]"},
	{regexp.MustCompile(`\b\d{9}\b`), "[ROUTING]"},
	{regexp.MustCompile(`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`), "[SSN]"},
}

// Sanitize replaces card, account, routing and SSN-like numbers with
// placeholder tokens.
func Sanitize(text string) string {
	for _, r := range redactions {
		text = r.re.ReplaceAllString(text, r.replacement)
	}
	return text
}

// SanitizeDescription sanitizes text and truncates it to
// MaxDescriptionLength runes.
func SanitizeDescription(text string) string {
	text = Sanitize(text)
	if utf8.RuneCountInString(text) <= MaxDescriptionLength {
		return text
	}
	return string([]rune(text)[:MaxDescriptionLength])
}

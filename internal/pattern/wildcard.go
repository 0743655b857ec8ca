package pattern

import (
	"regexp"
	"strings"
	"unicode"
)

// CompileWildcard turns a wildcard pattern into an anchored, case-insensitive
// regex. "*" matches any run of characters and each whitespace run matches
// one or more whitespace characters. Everything else is literal.
func CompileWildcard(pattern string) (*regexp.Regexp, error) {
	var b, lit strings.Builder
	flush := func() {
		b.WriteString(regexp.QuoteMeta(lit.String()))
		lit.Reset()
	}

	b.WriteString(`(?i)^`)
	inSpace := false
	for _, r := range strings.TrimSpace(pattern) {
		switch {
		case unicode.IsSpace(r):
			if !inSpace {
				flush()
				b.WriteString(`\s+`)
				inSpace = true
			}
			continue
		case r == '*':
			flush()
			b.WriteString(`.*`)
		default:
			lit.WriteRune(r)
		}
		inSpace = false
	}
	flush()
	b.WriteString(`$`)

	return regexp.Compile(b.String())
}

// NormalizeDescription prepares a description for wildcard matching.
func NormalizeDescription(description string) string {
	return strings.ToLower(strings.TrimSpace(description))
}

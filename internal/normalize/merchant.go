// Package normalize turns raw bank descriptions into merchant names and
// reusable wildcard patterns. Everything here is pure and safe for
// concurrent use.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// noisePrefixes are stripped in order. Longer phrases come before the words
// they contain so "POS DEBIT" is removed as one token.
var noisePrefixes = []string{
	"POS DEBIT", "POS PURCHASE", "POS",
	"CHECKCARD", "CHECK CARD",
	"ACH WITHDRAWAL", "ACH PAYMENT", "ACH TRANSFER", "ACH",
	"PURCHASE", "DEBIT", "RECURRING",
	"AUTOPAY", "AUTO PAY", "PAYMENT", "BILL PAY",
	"ONLINE", "MOBILE", "TRANSFER", "WIRE",
	"EXTERNAL", "INTERNAL", "ELECTRONIC", "PREAUTHORIZED", "PENDING",
	"VISA", "MASTERCARD", "AMEX", "DISCOVER",
}

type noiseClass struct {
	re   *regexp.Regexp
	name string
}

// noiseClasses run in order. Location and store-number fragments go before
// bare digit runs so "#1234 CA 90210" is removed whole.
var noiseClasses = []noiseClass{
	{name: "state_zip", re: regexp.MustCompile(`(?i)\b[A-Z]{2}\s*\d{5}(?:-\d{4})?\b`)},
	{name: "store_number", re: regexp.MustCompile(`#\s*\d+`)},
	{name: "masked_number", re: regexp.MustCompile(`\*+\d+`)},
	{name: "masked_account", re: regexp.MustCompile(`(?i)\bX{3,}\d*\b`)},
	{name: "date", re: regexp.MustCompile(`\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b`)},
	{name: "timestamp", re: regexp.MustCompile(`\b\d{2}:\d{2}(?::\d{2})?\b`)},
	{name: "dollar_amount", re: regexp.MustCompile(`\$\d+(?:\.\d{2})?`)},
	{name: "decimal_amount", re: regexp.MustCompile(`\b\d+\.\d{2}\b`)},
	{name: "reference_number", re: regexp.MustCompile(`\b\d{4,}\b`)},
}

var (
	prefixPatterns  = compilePrefixes(noisePrefixes)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	boundaryPunct   = regexp.MustCompile(`^[\s\-_.,;:#*]+|[\s\-_.,;:#*]+$`)
	domainSuffix    = regexp.MustCompile(`(?i)\b(\w+)\.(?:COM|NET|ORG|IO|CO)\b`)
	uppercaseBrands = map[string]struct{}{
		"USPS": {}, "UPS": {}, "FEDEX": {}, "DHL": {}, "ATM": {}, "CVS": {},
		"HBO": {}, "ESPN": {}, "NBC": {}, "CBS": {}, "ABC": {}, "PBS": {},
		"NPR": {}, "BBC": {}, "CNN": {}, "IKEA": {}, "H&M": {}, "AT&T": {},
		"T-MOBILE": {}, "USA": {}, "UK": {}, "EU": {},
	}
)

func compilePrefixes(prefixes []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(prefixes))
	for i, p := range prefixes {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(p) + `\b`)
	}
	return out
}

// Result is the output of Merchant.
type Result struct {
	Merchant      string
	TokensRemoved []string
}

// Merchant extracts a display merchant name from a raw description.
func Merchant(description string) Result {
	text := strings.TrimSpace(description)
	if text == "" {
		return Result{}
	}

	var removed []string

	for i, re := range prefixPatterns {
		var found bool
		if text, found = removeWord(text, re); found {
			removed = append(removed, noisePrefixes[i])
			text = strings.TrimSpace(text)
		}
	}

	for _, nc := range noiseClasses {
		matches := nc.re.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		for _, m := range matches {
			if m = strings.TrimSpace(m); m != "" {
				removed = append(removed, m)
			}
		}
		text = nc.re.ReplaceAllString(text, " ")
	}

	text = whitespaceRun.ReplaceAllString(text, " ")
	text = boundaryPunct.ReplaceAllString(strings.TrimSpace(text), "")

	if m := domainSuffix.FindStringSubmatch(text); m != nil {
		removed = append(removed, strings.TrimPrefix(m[0], m[1]))
		text = domainSuffix.ReplaceAllString(text, "$1")
	}

	text = strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
	if text == "" {
		return Result{TokensRemoved: removed}
	}

	return Result{Merchant: titleCase(text), TokensRemoved: removed}
}

// MatchKey returns the lowercase normalized form used for rule matching.
func MatchKey(merchant string) string {
	return strings.ToLower(Merchant(merchant).Merchant)
}

// removeWord deletes matches of re that are not glued to a neighbouring
// word by "-" or "&", so "T-MOBILE" survives the MOBILE prefix.
func removeWord(text string, re *regexp.Regexp) (string, bool) {
	locs := re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text, false
	}

	var b strings.Builder
	last := 0
	found := false
	for _, loc := range locs {
		if isJoined(text, loc[0], loc[1]) {
			continue
		}
		b.WriteString(text[last:loc[0]])
		b.WriteByte(' ')
		last = loc[1]
		found = true
	}
	if !found {
		return text, false
	}
	b.WriteString(text[last:])
	return b.String(), true
}

func isJoined(text string, start, end int) bool {
	joiner := func(c byte) bool { return c == '-' || c == '&' }
	return (start > 0 && joiner(text[start-1])) || (end < len(text) && joiner(text[end]))
}

func titleCase(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		upper := strings.ToUpper(w)
		switch {
		case isBrand(upper):
			words[i] = upper
		case utf8.RuneCountInString(w) <= 2 && isUpper(w):
			// short acronyms such as "NY" or "US" stay as they are
		default:
			words[i] = capitalize(w)
		}
	}
	return strings.Join(words, " ")
}

func isBrand(upper string) bool {
	_, ok := uppercaseBrands[upper]
	return ok
}

func isUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func capitalize(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	return string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
}

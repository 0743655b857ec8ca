// Package pattern matches transactions against merchant and description rules.
package pattern

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/crzyc98/fintrak/internal/model"
)

type compiled struct {
	re      *regexp.Regexp
	err     error
	pattern string
}

// Cache holds compiled wildcard regexes keyed by rule ID. An entry is
// recompiled when the rule's pattern text changes.
type Cache struct {
	entries map[string]compiled
	mu      sync.RWMutex
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]compiled)}
}

// Compile returns the regex for ruleID, compiling pattern on first use.
func (c *Cache) Compile(ruleID, pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	entry, ok := c.entries[ruleID]
	c.mu.RUnlock()
	if ok && entry.pattern == pattern {
		return entry.re, entry.err
	}

	re, err := CompileWildcard(pattern)

	c.mu.Lock()
	c.entries[ruleID] = compiled{pattern: pattern, re: re, err: err}
	c.mu.Unlock()

	return re, err
}

// Forget drops the cached regex for ruleID.
func (c *Cache) Forget(ruleID string) {
	c.mu.Lock()
	delete(c.entries, ruleID)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// MatchMerchant returns the first rule whose pattern is a case-insensitive
// substring of merchant. Rules must be ordered newest first so the latest
// rule wins when several match.
func MatchMerchant(rules []model.CategorizationRule, merchant string) *model.CategorizationRule {
	merchant = strings.ToLower(strings.TrimSpace(merchant))
	if merchant == "" {
		return nil
	}

	for i := range rules {
		p := strings.ToLower(rules[i].MerchantPattern)
		if p != "" && strings.Contains(merchant, p) {
			return &rules[i]
		}
	}
	return nil
}

// DescriptionMatcher evaluates account-scoped wildcard rules.
type DescriptionMatcher struct {
	cache *Cache
}

// NewDescriptionMatcher creates a matcher backed by cache. A nil cache gets
// a private one.
func NewDescriptionMatcher(cache *Cache) *DescriptionMatcher {
	if cache == nil {
		cache = NewCache()
	}
	return &DescriptionMatcher{cache: cache}
}

// Match returns the first rule in accountID whose pattern matches the whole
// description. Rules must be ordered newest first. Rules from other accounts
// and rules that fail to compile are skipped.
func (m *DescriptionMatcher) Match(rules []model.DescriptionPatternRule, accountID, description string) *model.DescriptionPatternRule {
	desc := NormalizeDescription(description)
	if desc == "" {
		return nil
	}

	for i := range rules {
		rule := &rules[i]
		if rule.AccountID != accountID {
			continue
		}
		re, err := m.cache.Compile(rule.ID, rule.DescriptionPattern)
		if err != nil {
			slog.Warn("Skipping invalid description rule",
				"rule_id", rule.ID,
				"pattern", rule.DescriptionPattern,
				"error", err)
			continue
		}
		if re.MatchString(desc) {
			return rule
		}
	}
	return nil
}

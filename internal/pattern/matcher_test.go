package pattern

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crzyc98/fintrak/internal/model"
)

func TestCompileWildcard(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		input   string
		want    bool
	}{
		{name: "wildcard middle", pattern: "direct deposit fidelity * (cash)", input: "direct deposit fidelity bro999999 (cash)", want: true},
		{name: "case insensitive", pattern: "direct deposit fidelity * (cash)", input: "DIRECT DEPOSIT FIDELITY BRO1 (CASH)", want: true},
		{name: "anchored end", pattern: "grocery store", input: "grocery store 42", want: false},
		{name: "anchored start", pattern: "grocery store", input: "the grocery store", want: false},
		{name: "regex metacharacters are literal", pattern: "a.b+c", input: "axbbc", want: false},
		{name: "metacharacters match themselves", pattern: "a.b+c", input: "a.b+c", want: true},
		{name: "flexible whitespace", pattern: "venmo payment *", input: "venmo   payment 123", want: true},
		{name: "hash wildcard", pattern: "check #* deposit", input: "check #5521 deposit", want: true},
		{name: "bare wildcard", pattern: "*", input: "anything at all", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re, err := CompileWildcard(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, re.MatchString(tt.input))
		})
	}
}

func TestMatchMerchant_NewestWins(t *testing.T) {
	now := time.Now()
	rules := []model.CategorizationRule{
		{ID: "new", MerchantPattern: "starbucks reserve", CategoryID: "cat-b", CreatedAt: now},
		{ID: "old", MerchantPattern: "starbucks", CategoryID: "cat-a", CreatedAt: now.Add(-time.Hour)},
	}

	got := MatchMerchant(rules, "Starbucks Reserve Roastery")
	require.NotNil(t, got)
	assert.Equal(t, "new", got.ID)

	got = MatchMerchant(rules, "Starbucks")
	require.NotNil(t, got)
	assert.Equal(t, "old", got.ID)

	assert.Nil(t, MatchMerchant(rules, "Peets"))
	assert.Nil(t, MatchMerchant(rules, ""))
}

func TestDescriptionMatcher_AccountScoped(t *testing.T) {
	rules := []model.DescriptionPatternRule{
		{ID: "r1", AccountID: "acct-1", DescriptionPattern: "direct deposit fidelity * (cash)", CategoryID: "income"},
	}
	m := NewDescriptionMatcher(nil)

	got := m.Match(rules, "acct-1", "DIRECT DEPOSIT Fidelity Bro999999 (Cash)")
	require.NotNil(t, got)
	assert.Equal(t, "r1", got.ID)

	assert.Nil(t, m.Match(rules, "acct-2", "DIRECT DEPOSIT Fidelity Bro999999 (Cash)"))
	assert.Nil(t, m.Match(rules, "acct-1", "   "))
}

func TestDescriptionMatcher_FirstMatchWins(t *testing.T) {
	rules := []model.DescriptionPatternRule{
		{ID: "newer", AccountID: "a", DescriptionPattern: "transfer *"},
		{ID: "older", AccountID: "a", DescriptionPattern: "transfer * to *"},
	}
	got := NewDescriptionMatcher(nil).Match(rules, "a", "Transfer 12345 to 67890")
	require.NotNil(t, got)
	assert.Equal(t, "newer", got.ID)
}

func TestCache_RecompilesOnPatternChange(t *testing.T) {
	c := NewCache()

	re1, err := c.Compile("r1", "coffee *")
	require.NoError(t, err)
	re2, err := c.Compile("r1", "coffee *")
	require.NoError(t, err)
	assert.Same(t, re1, re2)

	re3, err := c.Compile("r1", "tea *")
	require.NoError(t, err)
	assert.NotSame(t, re1, re3)
	assert.True(t, re3.MatchString("tea 1"))

	c.Forget("r1")
	assert.Equal(t, 0, c.Len())
}

func TestCompileWildcard_LongPattern(t *testing.T) {
	_, err := CompileWildcard(strings.Repeat("a", 2000) + " *")
	assert.NoError(t, err)
}

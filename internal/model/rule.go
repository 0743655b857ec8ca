package model

import "time"

// RuleSource records who created a rule.
type RuleSource string

// Rule sources.
const (
	RuleSourceManual RuleSource = "manual"
	RuleSourceAI     RuleSource = "ai"
)

// CategorizationRule maps a merchant substring to a category.
type CategorizationRule struct {
	CreatedAt       time.Time
	ID              string
	MerchantPattern string
	CategoryID      string
	CategoryName    string
	Source          RuleSource
}

// DescriptionPatternRule maps a wildcard description pattern to a category
// within one account.
type DescriptionPatternRule struct {
	CreatedAt          time.Time
	ID                 string
	AccountID          string
	DescriptionPattern string
	CategoryID         string
	CategoryName       string
	Source             RuleSource
}

// RuleFilter narrows rule listings.
type RuleFilter struct {
	CategoryID string
	AccountID  string
	Limit      int
	Offset     int
}

// Package model defines the core domain types for transaction classification.
package model

import "time"

// CategorizationSource records which stage of the pipeline assigned a category.
type CategorizationSource string

// Categorization sources.
const (
	SourceRule     CategorizationSource = "rule"
	SourceDescRule CategorizationSource = "desc_rule"
	SourceAI       CategorizationSource = "ai"
	SourceManual   CategorizationSource = "manual"
	SourceImport   CategorizationSource = "import"
)

// EnrichmentSourceAI marks enrichment fields written by the AI provider.
const EnrichmentSourceAI = "ai"

// Transaction represents a single financial transaction.
// Amount is signed and stored in minor currency units; negative is an expense.
type Transaction struct {
	Date                 time.Time
	CreatedAt            time.Time
	CategoryID           *string
	ConfidenceScore      *float64
	CategorizationSource *CategorizationSource
	NormalizedMerchant   *string
	Subcategory          *string
	IsDiscretionary      *bool
	EnrichmentSource     *string
	Notes                *string
	ID                   string
	AccountID            string
	Description          string
	OriginalDescription  string
	Amount               int64
	Reviewed             bool
}

// HasCategory reports whether a category is assigned.
func (t Transaction) HasCategory() bool {
	return t.CategoryID != nil && *t.CategoryID != ""
}

// IsEnriched reports whether the AI enrichment pass has run on t.
func (t Transaction) IsEnriched() bool {
	return t.EnrichmentSource != nil
}

// IsManual reports whether the category was set by hand.
func (t Transaction) IsManual() bool {
	return t.CategorizationSource != nil && *t.CategorizationSource == SourceManual
}

// Merchant returns the normalized merchant, or "" when none is stored.
func (t Transaction) Merchant() string {
	if t.NormalizedMerchant == nil {
		return ""
	}
	return *t.NormalizedMerchant
}

// TransactionType returns "expense" for negative amounts and "income" otherwise.
func (t Transaction) TransactionType() string {
	if t.Amount < 0 {
		return "expense"
	}
	return "income"
}

// TransactionUpdate carries a partial update of one transaction.
// Only non-nil fields are written.
type TransactionUpdate struct {
	CategoryID           *string
	ConfidenceScore      *float64
	CategorizationSource *CategorizationSource
	Subcategory          *string
	IsDiscretionary      *bool
	NormalizedMerchant   *string
	EnrichmentSource     *string
}

// IsEmpty reports whether the update touches no columns.
func (u TransactionUpdate) IsEmpty() bool {
	return u.CategoryID == nil && u.ConfidenceScore == nil && u.CategorizationSource == nil &&
		u.Subcategory == nil && u.IsDiscretionary == nil && u.NormalizedMerchant == nil &&
		u.EnrichmentSource == nil
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

package model

// AIResult is one validated item of a provider classification response.
type AIResult struct {
	IsDiscretionary    *bool
	Subcategory        *string
	NormalizedMerchant *string
	TransactionID      string
	CategoryName       string
	CategoryGroup      string
	Confidence         float64
}

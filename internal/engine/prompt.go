package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/crzyc98/fintrak/internal/llm"
	"github.com/crzyc98/fintrak/internal/model"
)

type promptCategory struct {
	Name  string `json:"name"`
	Group string `json:"group"`
}

// PromptTransaction is the sanitized view of a transaction sent to the
// provider.
type PromptTransaction struct {
	TransactionID   string `json:"transaction_id"`
	Merchant        string `json:"merchant"`
	Description     string `json:"description"`
	Type            string `json:"type"`
	CurrentCategory string `json:"current_category,omitempty"`
}

// BuildPrompt renders the classification and enrichment prompt for one
// sub-batch. Descriptions and merchants are sanitized before inclusion.
// categoryNames maps category IDs to names for already-categorized
// transactions.
func BuildPrompt(transactions []model.Transaction, categories []model.Category, categoryNames map[string]string) (string, error) {
	cats := make([]promptCategory, len(categories))
	for i, cat := range categories {
		cats[i] = promptCategory{Name: cat.Name, Group: string(cat.Group)}
	}

	txns := make([]PromptTransaction, len(transactions))
	for i, txn := range transactions {
		merchant := txn.Merchant()
		if merchant == "" {
			merchant = txn.Description
		}
		description := txn.OriginalDescription
		if description == "" {
			description = txn.Description
		}

		pt := PromptTransaction{
			TransactionID: txn.ID,
			Merchant:      llm.Sanitize(merchant),
			Description:   llm.SanitizeDescription(description),
			Type:          txn.TransactionType(),
		}
		if txn.HasCategory() {
			pt.CurrentCategory = categoryNames[*txn.CategoryID]
		}
		txns[i] = pt
	}

	categoriesJSON, err := json.MarshalIndent(cats, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode categories: %w", err)
	}
	transactionsJSON, err := json.MarshalIndent(txns, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode transactions: %w", err)
	}

	groups := make([]string, len(model.CategoryGroups))
	for i, g := range model.CategoryGroups {
		groups[i] = string(g)
	}

	var b strings.Builder
	b.WriteString("You are a financial transaction categorizer. For each transaction, choose the best category and enrich it.\n\n")
	b.WriteString("Available Categories:\n")
	b.Write(categoriesJSON)
	b.WriteString("\n\nTransactions:\n")
	b.Write(transactionsJSON)
	fmt.Fprintf(&b, `

For each transaction, provide:
1. category_name: the name of the best matching category from the list. Only if none fits, propose a short new category name.
2. category_group: one of %s.
3. normalized_merchant: a clean, human-readable merchant name. Convert cryptic bank descriptions like "SQ *JOES COFFEE #123" to "Joe's Coffee".
4. subcategory: a specific tag such as "Coffee Shop", "Streaming Service" or "Gas Station". Title case, 2-3 words.
5. is_discretionary: true for wants (dining out, entertainment, subscriptions), false for essentials (housing, utilities, groceries, insurance, medical). False for income.
6. confidence: a number from 0.0 to 1.0.

Transactions with a current_category keep it; still provide every field.

Respond with a JSON array of objects with the fields transaction_id, category_name, category_group, normalized_merchant, subcategory, is_discretionary and confidence.

Example response:
[
  {"transaction_id": "abc-123", "category_name": "Coffee", "category_group": "Lifestyle", "normalized_merchant": "Starbucks", "subcategory": "Coffee Shop", "is_discretionary": true, "confidence": 0.95}
]

Only respond with the JSON array, no additional text.`, strings.Join(groups, ", "))

	return b.String(), nil
}

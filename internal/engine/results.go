package engine

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/crzyc98/fintrak/internal/model"
)

// parseResults validates raw provider items against the sub-batch. Items
// without a known transaction_id are dropped, as are repeats of an ID
// already seen.
func parseResults(items []map[string]any, batch map[string]model.Transaction, logger *slog.Logger) []model.AIResult {
	seen := make(map[string]bool, len(items))
	results := make([]model.AIResult, 0, len(items))

	for _, item := range items {
		id := stringField(item, "transaction_id")
		if id == "" {
			logger.Warn("Dropping AI result without transaction_id")
			continue
		}
		if _, ok := batch[id]; !ok {
			logger.Warn("Dropping AI result for unknown transaction", "transaction_id", id)
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		result := model.AIResult{
			TransactionID: id,
			CategoryName:  stringField(item, "category_name"),
			CategoryGroup: stringField(item, "category_group"),
			Confidence:    clampConfidence(floatField(item, "confidence")),
		}
		if s := stringField(item, "normalized_merchant"); s != "" {
			result.NormalizedMerchant = &s
		}
		if s := stringField(item, "subcategory"); s != "" {
			result.Subcategory = &s
		}
		if b, ok := boolField(item, "is_discretionary"); ok {
			result.IsDiscretionary = &b
		}
		results = append(results, result)
	}
	return results
}

func clampConfidence(c float64) float64 {
	return min(max(c, 0), 1)
}

func stringField(item map[string]any, key string) string {
	switch v := item[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// floatField reads a number or numeric string, defaulting to 0.
func floatField(item map[string]any, key string) float64 {
	switch v := item[key].(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func boolField(item map[string]any, key string) (bool, bool) {
	switch v := item[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	default:
		return false, false
	}
}

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/crzyc98/fintrak/internal/model"
)

var (
	errMissingCategory = errors.New("result has no category_name")
	errUpdateFailed    = errors.New("failed to update transaction")
)

// classifyChunk sends one sub-batch to the provider and applies the results.
// A provider failure fails the sub-batch only. The returned error aborts the
// run and is reserved for store failures outside per-row updates.
func (o *Orchestrator) classifyChunk(ctx context.Context, chunk []model.Transaction, resolver *categoryResolver, counters *model.BatchCounters) error {
	categories, err := resolver.Categories(ctx)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}

	prompt, err := BuildPrompt(chunk, categories, names)
	if err != nil {
		return err
	}

	items, err := o.ai.InvokeAndParse(ctx, prompt, o.cfg.Timeout)
	if err != nil {
		o.logger.Error("Sub-batch classification failed",
			"provider", o.ai.Name(),
			"transactions", len(chunk),
			"error", err)
		counters.FailureCount += len(chunk)
		return nil
	}

	byID := make(map[string]model.Transaction, len(chunk))
	for _, txn := range chunk {
		byID[txn.ID] = txn
	}
	results := parseResults(items, byID, o.logger)
	if missing := len(chunk) - len(results); missing > 0 {
		o.logger.Warn("Provider omitted transactions", "missing", missing, "transactions", len(chunk))
		counters.FailureCount += missing
	}

	var learned []ruleCandidate
	for _, result := range results {
		if result.Confidence < o.cfg.ConfidenceThreshold {
			o.logger.Debug("AI result below confidence threshold",
				"transaction_id", result.TransactionID,
				"confidence", result.Confidence,
				"threshold", o.cfg.ConfidenceThreshold)
			counters.SkippedCount++
			continue
		}

		txn := byID[result.TransactionID]
		categoryID, err := o.applyResult(ctx, txn, result, resolver)
		switch {
		case errors.Is(err, errMissingCategory), errors.Is(err, errUpdateFailed):
			o.logger.Warn("Failed to apply AI result", "transaction_id", txn.ID, "error", err)
			counters.FailureCount++
			continue
		case err != nil:
			return err
		}

		counters.SuccessCount++
		counters.AIMatchCount++
		if categoryID != "" {
			learned = append(learned, ruleCandidate{
				txn:        txn,
				merchant:   merchantForRule(txn, result),
				categoryID: categoryID,
				confidence: result.Confidence,
			})
		}
	}

	o.learnFromAIResults(ctx, learned)
	return nil
}

// applyResult writes one AI result as a single partial update. Category
// fields are only written for uncategorized transactions; enrichment is
// always written. The returned category ID is set when a category was
// assigned.
func (o *Orchestrator) applyResult(ctx context.Context, txn model.Transaction, result model.AIResult, resolver *categoryResolver) (string, error) {
	update := model.TransactionUpdate{
		Subcategory:        result.Subcategory,
		IsDiscretionary:    result.IsDiscretionary,
		NormalizedMerchant: result.NormalizedMerchant,
		EnrichmentSource:   model.Ptr(model.EnrichmentSourceAI),
	}

	var assigned string
	if !txn.HasCategory() {
		if result.CategoryName == "" {
			return "", errMissingCategory
		}
		cat, err := resolver.Resolve(ctx, result.CategoryName, result.CategoryGroup)
		if err != nil {
			return "", err
		}
		assigned = cat.ID
		update.CategoryID = &assigned
		update.ConfidenceScore = model.Ptr(result.Confidence)
		update.CategorizationSource = model.Ptr(model.SourceAI)
	}

	if err := o.store.UpdateTransaction(ctx, txn.ID, update); err != nil {
		return "", fmt.Errorf("%w %s: %w", errUpdateFailed, txn.ID, err)
	}
	return assigned, nil
}

// merchantForRule picks the merchant a learned rule is keyed on: the one the
// provider suggested, else the stored one.
func merchantForRule(txn model.Transaction, result model.AIResult) string {
	if result.NormalizedMerchant != nil && *result.NormalizedMerchant != "" {
		return *result.NormalizedMerchant
	}
	return txn.Merchant()
}

package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/crzyc98/fintrak/internal/model"
	"github.com/crzyc98/fintrak/internal/normalize"
)

// Rule kinds reported by LearnedRule.
const (
	RuleKindMerchant    = "merchant"
	RuleKindDescription = "description"
)

// LearnedRule describes a rule created from a classification.
type LearnedRule struct {
	Kind      string
	Pattern   string
	AccountID string
}

// Correction is the outcome of a manual category change. Rule is nil when
// the category was unchanged, the pattern was too generic, or learning
// failed; LearnErr holds the failure.
type Correction struct {
	Rule          *LearnedRule
	LearnErr      error
	TransactionID string
	Category      model.Category
	Changed       bool
}

// CorrectCategory assigns a category by hand and learns a rule from it when
// the category changed. The transaction is marked manual so the cascade never
// overrides it. A learning failure does not fail the correction.
func (o *Orchestrator) CorrectCategory(ctx context.Context, transactionID, categoryID string) (*Correction, error) {
	txn, err := o.store.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	cat, err := o.store.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	update := model.TransactionUpdate{
		CategoryID:           &cat.ID,
		ConfidenceScore:      model.Ptr(1.0),
		CategorizationSource: model.Ptr(model.SourceManual),
	}
	if err := o.store.UpdateTransaction(ctx, txn.ID, update); err != nil {
		return nil, fmt.Errorf("failed to apply correction: %w", err)
	}

	o.logger.Info("Applied manual correction",
		"transaction_id", txn.ID,
		"category", cat.Name)

	correction := &Correction{
		TransactionID: txn.ID,
		Category:      *cat,
		Changed:       txn.CategoryID == nil || *txn.CategoryID != cat.ID,
	}
	if correction.Changed {
		correction.Rule, correction.LearnErr = o.LearnFromCorrection(ctx, *txn, cat.ID)
	}
	return correction, nil
}

// LearnFromCorrection records a rule so future transactions like txn get
// categoryID without an AI call. A merchant rule is preferred; without a
// merchant an account-scoped description rule is created from the extracted
// pattern. Degenerate patterns produce no rule and no error. Store failures
// are logged and returned.
func (o *Orchestrator) LearnFromCorrection(ctx context.Context, txn model.Transaction, categoryID string) (*LearnedRule, error) {
	if merchant := strings.TrimSpace(txn.Merchant()); merchant != "" {
		rule := &model.CategorizationRule{
			MerchantPattern: merchant,
			CategoryID:      categoryID,
			Source:          model.RuleSourceManual,
		}
		if err := o.store.CreateMerchantRule(ctx, rule); err != nil {
			o.logger.Warn("Failed to learn merchant rule",
				"transaction_id", txn.ID,
				"merchant", merchant,
				"error", err)
			return nil, fmt.Errorf("failed to learn merchant rule: %w", err)
		}
		o.logger.Info("Learned merchant rule", "pattern", rule.MerchantPattern, "category_id", categoryID)
		return &LearnedRule{Kind: RuleKindMerchant, Pattern: rule.MerchantPattern}, nil
	}

	pattern := normalize.ExtractPattern(txn.Description)
	if normalize.IsDegeneratePattern(pattern) {
		o.logger.Debug("Pattern too generic for a rule", "transaction_id", txn.ID, "pattern", pattern)
		return nil, nil
	}

	rule := &model.DescriptionPatternRule{
		AccountID:          txn.AccountID,
		DescriptionPattern: pattern,
		CategoryID:         categoryID,
		Source:             model.RuleSourceManual,
	}
	if err := o.store.CreateDescRule(ctx, rule); err != nil {
		o.logger.Warn("Failed to learn description rule",
			"transaction_id", txn.ID,
			"pattern", pattern,
			"error", err)
		return nil, fmt.Errorf("failed to learn description rule: %w", err)
	}
	o.logger.Info("Learned description rule",
		"pattern", rule.DescriptionPattern,
		"account_id", rule.AccountID,
		"category_id", categoryID)
	return &LearnedRule{Kind: RuleKindDescription, Pattern: rule.DescriptionPattern, AccountID: rule.AccountID}, nil
}

// ruleCandidate is an AI assignment that may become a rule.
type ruleCandidate struct {
	txn        model.Transaction
	merchant   string
	categoryID string
	confidence float64
}

// key identifies the rule a candidate would create.
func (c ruleCandidate) key() (string, string) {
	if merchant := strings.ToLower(strings.TrimSpace(c.merchant)); merchant != "" {
		return "merchant:" + merchant, merchant
	}
	pattern := normalize.ExtractPattern(c.txn.Description)
	return "desc:" + c.txn.AccountID + ":" + pattern, pattern
}

// learnFromAIResults creates rules from high-confidence AI assignments of
// one sub-batch. Candidates sharing a key keep the highest confidence. No
// rule is created where a matching rule already exists.
func (o *Orchestrator) learnFromAIResults(ctx context.Context, candidates []ruleCandidate) {
	best := make(map[string]ruleCandidate)
	var order []string
	for _, c := range candidates {
		if c.confidence < o.cfg.RuleConfidenceThreshold {
			continue
		}
		key, pattern := c.key()
		if normalize.IsDegeneratePattern(pattern) {
			continue
		}
		prev, ok := best[key]
		if !ok {
			order = append(order, key)
		}
		if !ok || c.confidence > prev.confidence {
			best[key] = c
		}
	}

	for _, key := range order {
		c := best[key]
		if err := o.learnAIRule(ctx, c); err != nil {
			o.logger.Warn("Failed to learn rule from AI result",
				"transaction_id", c.txn.ID,
				"error", err)
		}
	}
}

func (o *Orchestrator) learnAIRule(ctx context.Context, c ruleCandidate) error {
	if merchant := strings.TrimSpace(c.merchant); merchant != "" {
		existing, err := o.store.FindMatchingRule(ctx, merchant)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
		rule := &model.CategorizationRule{
			MerchantPattern: merchant,
			CategoryID:      c.categoryID,
			Source:          model.RuleSourceAI,
		}
		if err := o.store.CreateMerchantRule(ctx, rule); err != nil {
			return err
		}
		o.logger.Info("Learned merchant rule from AI",
			"pattern", rule.MerchantPattern,
			"confidence", c.confidence)
		return nil
	}

	existing, err := o.store.FindMatchingDescRule(ctx, c.txn.Description, c.txn.AccountID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	rule := &model.DescriptionPatternRule{
		AccountID:          c.txn.AccountID,
		DescriptionPattern: normalize.ExtractPattern(c.txn.Description),
		CategoryID:         c.categoryID,
		Source:             model.RuleSourceAI,
	}
	if err := o.store.CreateDescRule(ctx, rule); err != nil {
		return err
	}
	o.logger.Info("Learned description rule from AI",
		"pattern", rule.DescriptionPattern,
		"account_id", rule.AccountID,
		"confidence", c.confidence)
	return nil
}

// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/crzyc98/fintrak/internal/model"
)

// TransactionStore reads classification candidates and applies partial updates.
type TransactionStore interface {
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetCandidateTransactions(ctx context.Context, ids []string, limit int) ([]model.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, update model.TransactionUpdate) error
	CountUnclassified(ctx context.Context) (int, error)
}

// CategoryStore manages the classification targets.
type CategoryStore interface {
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByID(ctx context.Context, id string) (*model.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	CreateCategory(ctx context.Context, cat *model.Category) error
}

// RuleStore holds merchant and description rules.
type RuleStore interface {
	CreateMerchantRule(ctx context.Context, rule *model.CategorizationRule) error
	FindMatchingRule(ctx context.Context, merchant string) (*model.CategorizationRule, error)
	CreateDescRule(ctx context.Context, rule *model.DescriptionPatternRule) error
	FindMatchingDescRule(ctx context.Context, description, accountID string) (*model.DescriptionPatternRule, error)
}

// BatchStore persists the audit record of classification runs.
type BatchStore interface {
	CreateBatch(ctx context.Context, batch *model.CategorizationBatch) error
	UpdateBatch(ctx context.Context, id string, update model.BatchUpdate) error
	CompleteBatch(ctx context.Context, id string, update model.BatchUpdate) (*model.CategorizationBatch, error)
	GetBatch(ctx context.Context, id string) (*model.CategorizationBatch, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	TransactionStore
	CategoryStore
	RuleStore
	BatchStore
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

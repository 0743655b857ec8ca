package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/crzyc98/fintrak/internal/common"
	"github.com/crzyc98/fintrak/internal/model"
	"github.com/crzyc98/fintrak/internal/pattern"
)

const merchantRuleSelect = `
	SELECT r.id, r.merchant_pattern, r.category_id, COALESCE(c.name, ''), r.source, r.created_at
	FROM categorization_rules r
	LEFT JOIN categories c ON c.id = r.category_id`

// CreateMerchantRule upserts a merchant rule keyed by its lowercase pattern.
// An existing pattern gets the new category, source and a fresh timestamp.
func (s *SQLiteStorage) CreateMerchantRule(ctx context.Context, rule *model.CategorizationRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}

	rule.MerchantPattern = strings.ToLower(strings.TrimSpace(rule.MerchantPattern))
	if rule.MerchantPattern == "" {
		return fmt.Errorf("%w: empty merchant pattern", ErrInvalidRule)
	}
	if rule.Source == "" {
		rule.Source = model.RuleSourceManual
	}
	if err := validateRuleSource(rule.Source); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.categoryExists(ctx, tx, rule.CategoryID); err != nil {
			return err
		}

		now := s.now()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO categorization_rules (id, merchant_pattern, category_id, source, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(merchant_pattern) DO UPDATE SET
				category_id = excluded.category_id,
				source = excluded.source,
				created_at = excluded.created_at
		`, uuid.NewString(), rule.MerchantPattern, rule.CategoryID, string(rule.Source), now)
		if err != nil {
			return fmt.Errorf("failed to upsert merchant rule: %w", err)
		}

		stored, err := scanMerchantRule(tx.QueryRowContext(ctx,
			merchantRuleSelect+` WHERE r.merchant_pattern = ?`, rule.MerchantPattern))
		if err != nil {
			return fmt.Errorf("failed to reload merchant rule: %w", err)
		}
		*rule = *stored
		return nil
	})
}

// GetMerchantRule returns one merchant rule by ID.
func (s *SQLiteStorage) GetMerchantRule(ctx context.Context, id string) (*model.CategorizationRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rule, err := scanMerchantRule(s.db.QueryRowContext(ctx, merchantRuleSelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("merchant rule %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get merchant rule: %w", err)
	}
	return rule, nil
}

// ListMerchantRules returns a page of rules, newest first, and the total
// number of rules matching the filter.
func (s *SQLiteStorage) ListMerchantRules(ctx context.Context, filter model.RuleFilter) ([]model.CategorizationRule, int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, 0, err
	}

	where := ""
	var args []any
	if filter.CategoryID != "" {
		where = ` WHERE r.category_id = ?`
		args = append(args, filter.CategoryID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categorization_rules r`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count merchant rules: %w", err)
	}

	query := merchantRuleSelect + where + ` ORDER BY r.created_at DESC, r.rowid DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rules, err := s.queryMerchantRules(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return rules, total, nil
}

// GetMerchantRulesForMatching returns every merchant rule newest first.
func (s *SQLiteStorage) GetMerchantRulesForMatching(ctx context.Context) ([]model.CategorizationRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryMerchantRules(ctx, merchantRuleSelect+` ORDER BY r.created_at DESC, r.rowid DESC`)
}

// FindMatchingRule returns the newest rule whose pattern is contained in the
// merchant name, or nil when none matches.
func (s *SQLiteStorage) FindMatchingRule(ctx context.Context, merchant string) (*model.CategorizationRule, error) {
	if strings.TrimSpace(merchant) == "" {
		return nil, nil
	}
	rules, err := s.GetMerchantRulesForMatching(ctx)
	if err != nil {
		return nil, err
	}
	return pattern.MatchMerchant(rules, merchant), nil
}

// DeleteMerchantRule removes a rule and reports whether it existed.
func (s *SQLiteStorage) DeleteMerchantRule(ctx context.Context, id string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM categorization_rules WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete merchant rule: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check delete result: %w", err)
	}
	return n > 0, nil
}

// CountMerchantRules returns the number of merchant rules.
func (s *SQLiteStorage) CountMerchantRules(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categorization_rules`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count merchant rules: %w", err)
	}
	return n, nil
}

func (s *SQLiteStorage) queryMerchantRules(ctx context.Context, query string, args ...any) ([]model.CategorizationRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query merchant rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.CategorizationRule
	for rows.Next() {
		rule, err := scanMerchantRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan merchant rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating merchant rules: %w", err)
	}
	return rules, nil
}

func scanMerchantRule(row scanner) (*model.CategorizationRule, error) {
	var (
		rule   model.CategorizationRule
		source string
	)
	if err := row.Scan(&rule.ID, &rule.MerchantPattern, &rule.CategoryID, &rule.CategoryName, &source, &rule.CreatedAt); err != nil {
		return nil, err
	}
	rule.Source = model.RuleSource(source)
	return &rule, nil
}

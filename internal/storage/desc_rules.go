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
)

const descRuleSelect = `
	SELECT r.id, r.account_id, r.description_pattern, r.category_id, COALESCE(c.name, ''), r.source, r.created_at
	FROM description_pattern_rules r
	LEFT JOIN categories c ON c.id = r.category_id`

// CreateDescRule upserts a description rule keyed by (account, pattern).
func (s *SQLiteStorage) CreateDescRule(ctx context.Context, rule *model.DescriptionPatternRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := validateString(rule.AccountID, "accountID"); err != nil {
		return err
	}

	rule.DescriptionPattern = strings.ToLower(strings.TrimSpace(rule.DescriptionPattern))
	if rule.DescriptionPattern == "" {
		return fmt.Errorf("%w: empty description pattern", ErrInvalidRule)
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

		_, err := tx.ExecContext(ctx, `
			INSERT INTO description_pattern_rules (id, account_id, description_pattern, category_id, source, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(account_id, description_pattern) DO UPDATE SET
				category_id = excluded.category_id,
				source = excluded.source,
				created_at = excluded.created_at
		`, uuid.NewString(), rule.AccountID, rule.DescriptionPattern, rule.CategoryID, string(rule.Source), s.now())
		if err != nil {
			return fmt.Errorf("failed to upsert description rule: %w", err)
		}

		stored, err := scanDescRule(tx.QueryRowContext(ctx,
			descRuleSelect+` WHERE r.account_id = ? AND r.description_pattern = ?`,
			rule.AccountID, rule.DescriptionPattern))
		if err != nil {
			return fmt.Errorf("failed to reload description rule: %w", err)
		}
		*rule = *stored
		return nil
	})
}

// GetDescRule returns one description rule by ID.
func (s *SQLiteStorage) GetDescRule(ctx context.Context, id string) (*model.DescriptionPatternRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rule, err := scanDescRule(s.db.QueryRowContext(ctx, descRuleSelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("description rule %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get description rule: %w", err)
	}
	return rule, nil
}

// ListDescRules returns a page of description rules, newest first, and the
// total matching the filter.
func (s *SQLiteStorage) ListDescRules(ctx context.Context, filter model.RuleFilter) ([]model.DescriptionPatternRule, int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, 0, err
	}

	var (
		conds []string
		args  []any
	)
	if filter.AccountID != "" {
		conds = append(conds, "r.account_id = ?")
		args = append(args, filter.AccountID)
	}
	if filter.CategoryID != "" {
		conds = append(conds, "r.category_id = ?")
		args = append(args, filter.CategoryID)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM description_pattern_rules r`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count description rules: %w", err)
	}

	query := descRuleSelect + where + ` ORDER BY r.created_at DESC, r.rowid DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rules, err := s.queryDescRules(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return rules, total, nil
}

// GetDescRulesForAccount returns one account's rules newest first.
func (s *SQLiteStorage) GetDescRulesForAccount(ctx context.Context, accountID string) ([]model.DescriptionPatternRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryDescRules(ctx,
		descRuleSelect+` WHERE r.account_id = ? ORDER BY r.created_at DESC, r.rowid DESC`, accountID)
}

// FindMatchingDescRule returns the newest rule in accountID whose wildcard
// pattern matches the whole description, or nil.
func (s *SQLiteStorage) FindMatchingDescRule(ctx context.Context, description, accountID string) (*model.DescriptionPatternRule, error) {
	if strings.TrimSpace(description) == "" || accountID == "" {
		return nil, nil
	}
	rules, err := s.GetDescRulesForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.descRules.Match(rules, accountID, description), nil
}

// DeleteDescRule removes a description rule and reports whether it existed.
func (s *SQLiteStorage) DeleteDescRule(ctx context.Context, id string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM description_pattern_rules WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete description rule: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check delete result: %w", err)
	}
	s.descCache.Forget(id)
	return n > 0, nil
}

// CountDescRules returns the number of description rules.
func (s *SQLiteStorage) CountDescRules(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM description_pattern_rules`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count description rules: %w", err)
	}
	return n, nil
}

func (s *SQLiteStorage) queryDescRules(ctx context.Context, query string, args ...any) ([]model.DescriptionPatternRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query description rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.DescriptionPatternRule
	for rows.Next() {
		rule, err := scanDescRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan description rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating description rules: %w", err)
	}
	return rules, nil
}

func scanDescRule(row scanner) (*model.DescriptionPatternRule, error) {
	var (
		rule   model.DescriptionPatternRule
		source string
	)
	if err := row.Scan(&rule.ID, &rule.AccountID, &rule.DescriptionPattern, &rule.CategoryID,
		&rule.CategoryName, &source, &rule.CreatedAt); err != nil {
		return nil, err
	}
	rule.Source = model.RuleSource(source)
	return &rule, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/crzyc98/fintrak/internal/common"
	"github.com/crzyc98/fintrak/internal/model"
)

const categoryColumns = `id, name, emoji, parent_id, group_name, budget_amount, created_at`

// GetCategories returns all categories ordered by name.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, *cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("Retrieved categories", "count", len(categories))
	return categories, nil
}

// GetCategoryByID returns one category.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, id string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	cat, err := scanCategory(s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return cat, nil
}

// GetCategoryByName returns the category whose name matches
// case-insensitively.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	cat, err := scanCategory(s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE name = ? COLLATE NOCASE ORDER BY created_at LIMIT 1`,
		strings.TrimSpace(name)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %q: %w", name, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}
	return cat, nil
}

// CreateCategory inserts cat, assigning an ID and creation time when unset.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, cat *model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategory(cat); err != nil {
		return err
	}

	if cat.ID == "" {
		cat.ID = uuid.NewString()
	}
	if cat.CreatedAt.IsZero() {
		cat.CreatedAt = s.now()
	}
	cat.Name = strings.TrimSpace(cat.Name)
	cat.Group = model.ParseCategoryGroup(string(cat.Group))

	var budget sql.NullInt64
	if cat.BudgetAmount != nil {
		budget = sql.NullInt64{Int64: *cat.BudgetAmount, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cat.ID, cat.Name, nullString(cat.Emoji), nullString(cat.ParentID),
		string(cat.Group), budget, cat.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create category %q: %w", cat.Name, err)
	}

	slog.Info("Created category", "id", cat.ID, "name", cat.Name, "group", cat.Group)
	return nil
}

func (s *SQLiteStorage) categoryExists(ctx context.Context, q queryable, id string) error {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE id = ?`, id).Scan(&n); err != nil {
		return fmt.Errorf("failed to verify category: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("category %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func scanCategory(row scanner) (*model.Category, error) {
	var (
		cat      model.Category
		emoji    sql.NullString
		parentID sql.NullString
		group    string
		budget   sql.NullInt64
	)
	if err := row.Scan(&cat.ID, &cat.Name, &emoji, &parentID, &group, &budget, &cat.CreatedAt); err != nil {
		return nil, err
	}
	cat.Emoji = stringPtr(emoji)
	cat.ParentID = stringPtr(parentID)
	cat.Group = model.ParseCategoryGroup(group)
	cat.BudgetAmount = int64Ptr(budget)
	return &cat, nil
}

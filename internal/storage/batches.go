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

const batchColumns = `id, import_id, transaction_count, success_count, failure_count,
	rule_match_count, desc_rule_match_count, ai_match_count, skipped_count,
	categories_created_count, duration_ms, error_message, started_at, completed_at`

// CreateBatch inserts the audit record for a run that is starting.
func (s *SQLiteStorage) CreateBatch(ctx context.Context, batch *model.CategorizationBatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if batch == nil {
		return fmt.Errorf("%w: batch", ErrNilParameter)
	}
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.StartedAt.IsZero() {
		batch.StartedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categorization_batches (id, import_id, transaction_count, started_at)
		VALUES (?, ?, ?, ?)
	`, batch.ID, nullString(batch.ImportID), batch.TransactionCount, batch.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}
	return nil
}

// UpdateBatch applies a partial update to a batch record.
func (s *SQLiteStorage) UpdateBatch(ctx context.Context, id string, update model.BatchUpdate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.updateBatch(ctx, s.db, id, update, nil)
}

// CompleteBatch applies the final counters, stamps completed_at and records
// the run duration.
func (s *SQLiteStorage) CompleteBatch(ctx context.Context, id string, update model.BatchUpdate) (*model.CategorizationBatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var batch *model.CategorizationBatch
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := scanBatch(tx.QueryRowContext(ctx,
			`SELECT `+batchColumns+` FROM categorization_batches WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("batch %s: %w", id, common.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to load batch: %w", err)
		}

		completedAt := s.now()
		durationMS := completedAt.Sub(current.StartedAt).Milliseconds()
		if durationMS < 0 {
			durationMS = 0
		}

		extra := map[string]any{
			"completed_at": completedAt,
			"duration_ms":  durationMS,
		}
		if err := s.updateBatch(ctx, tx, id, update, extra); err != nil {
			return err
		}

		batch, err = scanBatch(tx.QueryRowContext(ctx,
			`SELECT `+batchColumns+` FROM categorization_batches WHERE id = ?`, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (s *SQLiteStorage) updateBatch(ctx context.Context, q queryable, id string, update model.BatchUpdate, extra map[string]any) error {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if update.TransactionCount != nil {
		add("transaction_count", *update.TransactionCount)
	}
	if c := update.Counters; c != nil {
		add("success_count", c.SuccessCount)
		add("failure_count", c.FailureCount)
		add("rule_match_count", c.RuleMatchCount)
		add("desc_rule_match_count", c.DescRuleMatchCount)
		add("ai_match_count", c.AIMatchCount)
		add("skipped_count", c.SkippedCount)
		add("categories_created_count", c.CategoriesCreatedCount)
	}
	if update.ErrorMessage != nil {
		add("error_message", *update.ErrorMessage)
	}
	for _, column := range []string{"completed_at", "duration_ms"} {
		if v, ok := extra[column]; ok {
			add(column, v)
		}
	}

	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	result, err := q.ExecContext(ctx,
		`UPDATE categorization_batches SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update batch: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check batch update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("batch %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// GetBatch returns a batch record by ID.
func (s *SQLiteStorage) GetBatch(ctx context.Context, id string) (*model.CategorizationBatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	batch, err := scanBatch(s.db.QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM categorization_batches WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return batch, nil
}

// ListBatches returns a page of batch records, most recent first, and the
// total count.
func (s *SQLiteStorage) ListBatches(ctx context.Context, limit, offset int) ([]model.CategorizationBatch, int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 20
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categorization_batches`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count batches: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+batchColumns+` FROM categorization_batches
		 ORDER BY started_at DESC, rowid DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query batches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var batches []model.CategorizationBatch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, *batch)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating batches: %w", err)
	}
	return batches, total, nil
}

func scanBatch(row scanner) (*model.CategorizationBatch, error) {
	var (
		b           model.CategorizationBatch
		importID    sql.NullString
		durationMS  sql.NullInt64
		errMsg      sql.NullString
		completedAt sql.NullTime
	)
	if err := row.Scan(&b.ID, &importID, &b.TransactionCount, &b.SuccessCount, &b.FailureCount,
		&b.RuleMatchCount, &b.DescRuleMatchCount, &b.AIMatchCount, &b.SkippedCount,
		&b.CategoriesCreatedCount, &durationMS, &errMsg, &b.StartedAt, &completedAt); err != nil {
		return nil, err
	}
	b.ImportID = stringPtr(importID)
	b.DurationMS = int64Ptr(durationMS)
	b.ErrorMessage = stringPtr(errMsg)
	b.CompletedAt = timePtr(completedAt)
	return &b, nil
}

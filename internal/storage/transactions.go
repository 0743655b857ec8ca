package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/crzyc98/fintrak/internal/common"
	"github.com/crzyc98/fintrak/internal/model"
)

const transactionColumns = `id, account_id, date, description, original_description, amount,
	category_id, reviewed, notes, normalized_merchant, confidence_score,
	categorization_source, subcategory, is_discretionary, enrichment_source, created_at`

// SaveTransactions inserts transactions, ignoring IDs that already exist.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO transactions (`+transactionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, txn := range transactions {
			if txn.OriginalDescription == "" {
				txn.OriginalDescription = txn.Description
			}
			if txn.CreatedAt.IsZero() {
				txn.CreatedAt = s.now()
			}

			var source sql.NullString
			if txn.CategorizationSource != nil {
				source = sql.NullString{String: string(*txn.CategorizationSource), Valid: true}
			}
			var discretionary sql.NullBool
			if txn.IsDiscretionary != nil {
				discretionary = sql.NullBool{Bool: *txn.IsDiscretionary, Valid: true}
			}
			var confidence sql.NullFloat64
			if txn.ConfidenceScore != nil {
				confidence = sql.NullFloat64{Float64: *txn.ConfidenceScore, Valid: true}
			}

			if _, err := stmt.ExecContext(ctx,
				txn.ID,
				txn.AccountID,
				txn.Date.UTC(),
				txn.Description,
				txn.OriginalDescription,
				txn.Amount,
				nullString(txn.CategoryID),
				txn.Reviewed,
				nullString(txn.Notes),
				nullString(txn.NormalizedMerchant),
				confidence,
				source,
				nullString(txn.Subcategory),
				discretionary,
				nullString(txn.EnrichmentSource),
				txn.CreatedAt.UTC(),
			); err != nil {
				return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
			}
		}
		return nil
	})
}

// GetTransactionByID retrieves a single transaction.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// GetCandidateTransactions returns transactions lacking a category or
// enrichment, newest first. A non-empty ids restricts the candidates; a
// positive limit caps the result.
func (s *SQLiteStorage) GetCandidateTransactions(ctx context.Context, ids []string, limit int) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`SELECT ` + transactionColumns + ` FROM transactions
		WHERE (category_id IS NULL OR enrichment_source IS NULL)`)

	if len(ids) > 0 {
		query.WriteString(` AND id IN (` + placeholders(len(ids)) + `)`)
		for _, id := range ids {
			args = append(args, id)
		}
	}

	query.WriteString(` ORDER BY date DESC, id`)
	if limit > 0 {
		query.WriteString(` LIMIT ?`)
		args = append(args, limit)
	}

	return s.queryTransactions(ctx, query.String(), args...)
}

// ListTransactions returns transactions for one account (or all when
// accountID is empty), newest first.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	var args []any
	if accountID != "" {
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY date DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	return s.queryTransactions(ctx, query, args...)
}

// UpdateTransaction writes only the non-nil fields of update in a single
// UPDATE statement.
func (s *SQLiteStorage) UpdateTransaction(ctx context.Context, id string, update model.TransactionUpdate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := validateUpdate(update); err != nil {
		return err
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if update.CategoryID != nil {
		add("category_id", *update.CategoryID)
	}
	if update.ConfidenceScore != nil {
		add("confidence_score", *update.ConfidenceScore)
	}
	if update.CategorizationSource != nil {
		add("categorization_source", string(*update.CategorizationSource))
	}
	if update.Subcategory != nil {
		add("subcategory", *update.Subcategory)
	}
	if update.IsDiscretionary != nil {
		add("is_discretionary", *update.IsDiscretionary)
	}
	if update.NormalizedMerchant != nil {
		add("normalized_merchant", *update.NormalizedMerchant)
	}
	if update.EnrichmentSource != nil {
		add("enrichment_source", *update.EnrichmentSource)
	}
	args = append(args, id)

	result, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// CountUnclassified returns the number of transactions without a category.
func (s *SQLiteStorage) CountUnclassified(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE category_id IS NULL`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unclassified transactions: %w", err)
	}
	return count, nil
}

func (s *SQLiteStorage) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*model.Transaction, error) {
	var (
		txn           model.Transaction
		categoryID    sql.NullString
		notes         sql.NullString
		merchant      sql.NullString
		confidence    sql.NullFloat64
		source        sql.NullString
		subcategory   sql.NullString
		discretionary sql.NullBool
		enrichment    sql.NullString
	)

	if err := row.Scan(
		&txn.ID, &txn.AccountID, &txn.Date, &txn.Description, &txn.OriginalDescription, &txn.Amount,
		&categoryID, &txn.Reviewed, &notes, &merchant, &confidence,
		&source, &subcategory, &discretionary, &enrichment, &txn.CreatedAt,
	); err != nil {
		return nil, err
	}

	txn.CategoryID = stringPtr(categoryID)
	txn.Notes = stringPtr(notes)
	txn.NormalizedMerchant = stringPtr(merchant)
	txn.ConfidenceScore = floatPtr(confidence)
	if source.Valid {
		src := model.CategorizationSource(source.String)
		txn.CategorizationSource = &src
	}
	txn.Subcategory = stringPtr(subcategory)
	txn.IsDiscretionary = boolPtr(discretionary)
	txn.EnrichmentSource = stringPtr(enrichment)

	return &txn, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

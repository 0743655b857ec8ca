package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS categories (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					emoji TEXT,
					parent_id TEXT REFERENCES categories(id),
					group_name TEXT NOT NULL DEFAULT 'Other',
					budget_amount INTEGER,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_categories_name ON categories(name COLLATE NOCASE)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					account_id TEXT NOT NULL,
					date DATETIME NOT NULL,
					description TEXT NOT NULL,
					original_description TEXT NOT NULL,
					amount INTEGER NOT NULL,
					category_id TEXT REFERENCES categories(id),
					reviewed BOOLEAN NOT NULL DEFAULT 0,
					notes TEXT,
					normalized_merchant TEXT,
					confidence_score REAL,
					categorization_source TEXT,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,
				`CREATE INDEX idx_transactions_account ON transactions(account_id)`,
				`CREATE INDEX idx_transactions_category ON transactions(category_id)`,

				`CREATE TABLE IF NOT EXISTS categorization_rules (
					id TEXT PRIMARY KEY,
					merchant_pattern TEXT NOT NULL UNIQUE,
					category_id TEXT NOT NULL REFERENCES categories(id),
					created_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS categorization_batches (
					id TEXT PRIMARY KEY,
					import_id TEXT,
					transaction_count INTEGER NOT NULL,
					success_count INTEGER NOT NULL DEFAULT 0,
					failure_count INTEGER NOT NULL DEFAULT 0,
					rule_match_count INTEGER NOT NULL DEFAULT 0,
					ai_match_count INTEGER NOT NULL DEFAULT 0,
					skipped_count INTEGER NOT NULL DEFAULT 0,
					duration_ms INTEGER,
					error_message TEXT,
					started_at DATETIME NOT NULL,
					completed_at DATETIME
				)`,
				`CREATE INDEX idx_batches_started ON categorization_batches(started_at)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Add enrichment columns and rule source",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`ALTER TABLE transactions ADD COLUMN subcategory TEXT`,
				`ALTER TABLE transactions ADD COLUMN is_discretionary BOOLEAN`,
				`ALTER TABLE transactions ADD COLUMN enrichment_source TEXT`,
				`CREATE INDEX idx_transactions_pending ON transactions(category_id, enrichment_source)`,
				`ALTER TABLE categorization_rules ADD COLUMN source TEXT NOT NULL DEFAULT 'manual'`,
			})
		},
	},
	{
		Version:     3,
		Description: "Add description pattern rules",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS description_pattern_rules (
					id TEXT PRIMARY KEY,
					account_id TEXT NOT NULL,
					description_pattern TEXT NOT NULL,
					category_id TEXT NOT NULL REFERENCES categories(id),
					source TEXT NOT NULL DEFAULT 'manual',
					created_at DATETIME NOT NULL,
					UNIQUE(account_id, description_pattern)
				)`,
				`CREATE INDEX idx_desc_rules_account ON description_pattern_rules(account_id)`,
				`ALTER TABLE categorization_batches ADD COLUMN desc_rule_match_count INTEGER NOT NULL DEFAULT 0`,
			})
		},
	},
	{
		Version:     4,
		Description: "Track categories created per batch",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`ALTER TABLE categorization_batches ADD COLUMN categories_created_count INTEGER NOT NULL DEFAULT 0`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Debug("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

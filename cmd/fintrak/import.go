package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/crzyc98/fintrak/internal/cli"
	"github.com/crzyc98/fintrak/internal/engine"
	"github.com/crzyc98/fintrak/internal/model"
	"github.com/crzyc98/fintrak/internal/ofx"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	var (
		dryRun   bool
		classify bool
	)

	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import financial transactions from OFX or QFX (Quicken) files exported from your bank.

Re-importing a file is safe: transaction IDs are derived from the account and
the bank's transaction ID, so rows already stored are left alone.

Examples:
  # Import single file
  fintrak import ~/Downloads/chase_jan_2024.qfx

  # Import all QFX files in a directory and classify them
  fintrak import ~/Downloads/*.qfx --classify`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			files, err := expandFiles(args)
			if err != nil {
				return err
			}

			parser := ofx.NewParser(slog.Default())
			seen := make(map[string]bool)
			var transactions []model.Transaction

			for _, path := range files {
				f, err := os.Open(path) //nolint:gosec // user-supplied import path
				if err != nil {
					slog.Error("Failed to open file", "file", path, "error", err)
					continue
				}
				stmt, err := parser.ParseFile(ctx, f)
				_ = f.Close()
				if err != nil {
					slog.Error("Failed to parse OFX file", "file", path, "error", err)
					continue
				}

				added := 0
				for _, txn := range stmt.Transactions {
					if !seen[txn.ID] {
						seen[txn.ID] = true
						transactions = append(transactions, txn)
						added++
					}
				}
				slog.Info("Processed file",
					"file", filepath.Base(path),
					"accounts", len(stmt.Accounts),
					"transactions_found", len(stmt.Transactions),
					"added", added)
			}

			if len(transactions) == 0 {
				cmd.Println(cli.FormatWarning("No transactions found in any file"))
				return nil
			}
			if dryRun {
				cmd.Println(cli.FormatInfo(fmt.Sprintf("Dry run: %d transactions parsed, nothing saved", len(transactions))))
				return nil
			}

			a, err := openApp(ctx, classify)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.SaveTransactions(ctx, transactions); err != nil {
				return fmt.Errorf("failed to save transactions: %w", err)
			}
			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d transactions from %d files", len(transactions), len(files))))

			if !classify {
				return nil
			}

			ids := make([]string, len(transactions))
			for i, txn := range transactions {
				ids[i] = txn.ID
			}
			result, err := a.engine.TriggerCategorization(ctx, engine.Options{TransactionIDs: ids})
			if err != nil {
				return fmt.Errorf("classification failed: %w", err)
			}
			cmd.Println(cli.FormatBatchResult(*result))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "Parse files without saving")
	cmd.Flags().BoolVar(&classify, "classify", false, "Classify the imported transactions")

	return cmd
}

// expandFiles resolves glob patterns, keeping literal paths that exist.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) > 0 {
			files = append(files, matches...)
			continue
		}
		if _, err := os.Stat(pattern); err == nil {
			files = append(files, pattern)
		} else {
			slog.Warn("No files found matching pattern", "pattern", pattern)
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no files found to import")
	}
	return files, nil
}

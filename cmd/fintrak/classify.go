package main

import (
	"fmt"
	"log/slog"

	"github.com/crzyc98/fintrak/internal/cli"
	"github.com/crzyc98/fintrak/internal/engine"
	"github.com/spf13/cobra"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify [transaction-ids...]",
		Short: "Categorize transactions",
		Long: `Categorize transactions that have no category yet, and enrich those that
have not been through the AI pass.

Merchant rules run first, then account-scoped description rules. Everything
left is sent to the configured AI provider in sub-batches. High-confidence AI
answers become new rules.

Examples:
  fintrak classify                   # Classify every pending transaction
  fintrak classify txn-1 txn-2       # Classify only these transactions
  fintrak classify --force-ai        # Skip rules and ask the AI for everything
  fintrak classify --batch-size 100  # Send 100 transactions per AI call`,
		RunE: runClassify,
	}

	cmd.Flags().Bool("force-ai", false, "Bypass merchant and description rules")
	cmd.Flags().Int("batch-size", 0, fmt.Sprintf("Transactions per AI call (%d-%d, 0 = configured default)", engine.MinBatchSize, engine.MaxBatchSize))

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	forceAI, _ := cmd.Flags().GetBool("force-ai")
	batchSize, _ := cmd.Flags().GetInt("batch-size")

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := handler.HandleInterrupts(cmd.Context(), true)
	defer handler.Stop()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Info("Starting transaction categorization",
		"transactions", len(args),
		"force_ai", forceAI)

	result, err := a.engine.TriggerCategorization(ctx, engine.Options{
		TransactionIDs: args,
		ForceAI:        forceAI,
		BatchSize:      batchSize,
	})
	if result != nil {
		cmd.Println(cli.FormatBatchResult(*result))
	}
	if handler.WasInterrupted() {
		return nil
	}
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}
	if result.ErrorMessage != "" {
		return fmt.Errorf("classification stopped: %s", result.ErrorMessage)
	}
	return nil
}

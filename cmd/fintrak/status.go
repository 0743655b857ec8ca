package main

import (
	"fmt"
	"strings"

	"github.com/crzyc98/fintrak/internal/cli"
	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show classification status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			unclassified, err := a.engine.GetUnclassifiedCount(ctx)
			if err != nil {
				return err
			}
			merchantRules, err := a.store.CountMerchantRules(ctx)
			if err != nil {
				return fmt.Errorf("failed to count merchant rules: %w", err)
			}
			descRules, err := a.store.CountDescRules(ctx)
			if err != nil {
				return fmt.Errorf("failed to count description rules: %w", err)
			}
			categories, err := a.store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			provider := cli.ErrorStyle.Render("not configured")
			if a.settings.HasAPIKey() {
				provider = cli.SuccessStyle.Render(fmt.Sprintf("%s (%s)", a.settings.LLM.Provider, a.settings.LLM.Model))
			}

			var sb strings.Builder
			fmt.Fprintf(&sb, "Database:            %s\n", a.settings.Database.Path)
			fmt.Fprintf(&sb, "AI provider:         %s\n", provider)
			fmt.Fprintf(&sb, "Unclassified:        %d\n", unclassified)
			fmt.Fprintf(&sb, "Categories:          %d\n", len(categories))
			fmt.Fprintf(&sb, "Merchant rules:      %d\n", merchantRules)
			fmt.Fprintf(&sb, "Description rules:   %d", descRules)

			batches, _, err := a.store.ListBatches(ctx, 1, 0)
			if err != nil {
				return fmt.Errorf("failed to list batches: %w", err)
			}
			if len(batches) > 0 {
				last := batches[0]
				fmt.Fprintf(&sb, "\nLast batch:          %s (%s, %d/%d classified)",
					last.ID, cli.BatchStatus(last), last.SuccessCount, last.TransactionCount)
			}

			cmd.Println(cli.RenderBox(cli.LedgerIcon+" fintrak status", sb.String()))
			return nil
		},
	}
}

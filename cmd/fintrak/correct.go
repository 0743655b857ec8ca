package main

import (
	"fmt"

	"github.com/crzyc98/fintrak/internal/cli"
	"github.com/crzyc98/fintrak/internal/engine"
	"github.com/spf13/cobra"
)

func correctCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "correct <transaction-id>",
		Short: "Set a transaction's category by hand",
		Long: `Assign a category to one transaction and learn a rule from it.

A merchant rule is created when the transaction has a normalized merchant;
otherwise a description rule scoped to its account is derived from the
description. Manual categories are never overwritten by later runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			cat, err := lookupCategory(ctx, a.store, category)
			if err != nil {
				return err
			}

			correction, err := a.engine.CorrectCategory(ctx, args[0], cat.ID)
			if err != nil {
				return fmt.Errorf("failed to correct transaction: %w", err)
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Transaction %s → %s", correction.TransactionID, correction.Category.Name)))
			switch {
			case correction.LearnErr != nil:
				cmd.Println(cli.FormatWarning(fmt.Sprintf("No rule learned: %v", correction.LearnErr)))
			case !correction.Changed:
				cmd.Println(cli.FormatInfo("Category unchanged; no rule learned."))
			case correction.Rule == nil:
				cmd.Println(cli.FormatWarning("No rule learned; the description is too generic."))
			case correction.Rule.Kind == engine.RuleKindMerchant:
				cmd.Println(cli.FormatInfo(fmt.Sprintf("%s Learned merchant rule %q", cli.RuleIcon, correction.Rule.Pattern)))
			default:
				cmd.Println(cli.FormatInfo(fmt.Sprintf("%s Learned description rule %q for account %s",
					cli.RuleIcon, correction.Rule.Pattern, correction.Rule.AccountID)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Category name or ID")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

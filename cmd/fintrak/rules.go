package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/crzyc98/fintrak/internal/cli"
	"github.com/crzyc98/fintrak/internal/common"
	"github.com/crzyc98/fintrak/internal/model"
	"github.com/crzyc98/fintrak/internal/normalize"
	"github.com/crzyc98/fintrak/internal/storage"
	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage merchant rules",
		Long: `Merchant rules map a merchant name to a category. A rule matches when its
pattern appears anywhere in a transaction's normalized merchant; the newest
matching rule wins.`,
	}

	cmd.AddCommand(addRuleCmd())
	cmd.AddCommand(listRulesCmd())
	cmd.AddCommand(deleteRuleCmd())

	return cmd
}

func addRuleCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "add <merchant>",
		Short: "Add or replace a merchant rule",
		Args:  cobra.ExactArgs(1),
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

			rule := &model.CategorizationRule{
				MerchantPattern: args[0],
				CategoryID:      cat.ID,
				Source:          model.RuleSourceManual,
			}
			if err := a.store.CreateMerchantRule(ctx, rule); err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Merchant %q → %s (rule %s)", rule.MerchantPattern, cat.Name, rule.ID)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Category name or ID")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func listRulesCmd() *cobra.Command {
	var (
		category string
		limit    int
		offset   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List merchant rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			filter := model.RuleFilter{Limit: limit, Offset: offset}
			if category != "" {
				cat, err := lookupCategory(ctx, a.store, category)
				if err != nil {
					return err
				}
				filter.CategoryID = cat.ID
			}

			rules, total, err := a.store.ListMerchantRules(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to list rules: %w", err)
			}
			if len(rules) == 0 {
				cmd.Println(cli.InfoStyle.Render("No merchant rules found. Use 'fintrak rules add' to create one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("ID"),
				cli.TableHeaderStyle.Render("Merchant"),
				cli.TableHeaderStyle.Render("Category"),
				cli.TableHeaderStyle.Render("Source"))
			for _, r := range rules {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.MerchantPattern, r.CategoryName, r.Source)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			printRemaining(cmd, offset, len(rules), total)
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Only rules for this category name or ID")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rules to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rules to skip")

	return cmd
}

func deleteRuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <rule-id>",
		Short: "Delete a merchant rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			deleted, err := a.store.DeleteMerchantRule(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to delete rule: %w", err)
			}
			if !deleted {
				return fmt.Errorf("merchant rule %s: %w", args[0], common.ErrNotFound)
			}
			cmd.Println(cli.FormatSuccess("Deleted merchant rule " + args[0]))
			return nil
		},
	}
}

func descRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "desc-rules",
		Short: "Manage description pattern rules",
		Long: `Description rules match a wildcard pattern against the description of
transactions in one account. Patterns use * for any run of characters and
are derived from a sample description when --from is given.`,
	}

	cmd.AddCommand(addDescRuleCmd())
	cmd.AddCommand(listDescRulesCmd())
	cmd.AddCommand(deleteDescRuleCmd())

	return cmd
}

func addDescRuleCmd() *cobra.Command {
	var (
		category string
		account  string
		from     string
	)

	cmd := &cobra.Command{
		Use:   "add [pattern]",
		Short: "Add or replace a description rule",
		Long: `Add a description rule for one account.

Examples:
  fintrak desc-rules add "netflix.com *" --account chk-1 --category Subscriptions
  fintrak desc-rules add --from "SPOTIFY USA 4455123" --account chk-1 -c Subscriptions`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pattern, err := descRulePattern(args, from)
			if err != nil {
				return err
			}

			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			cat, err := lookupCategory(ctx, a.store, category)
			if err != nil {
				return err
			}

			rule := &model.DescriptionPatternRule{
				AccountID:          account,
				DescriptionPattern: pattern,
				CategoryID:         cat.ID,
				Source:             model.RuleSourceManual,
			}
			if err := a.store.CreateDescRule(ctx, rule); err != nil {
				return fmt.Errorf("failed to create description rule: %w", err)
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("%q in %s → %s (rule %s)", rule.DescriptionPattern, rule.AccountID, cat.Name, rule.ID)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Category name or ID")
	cmd.Flags().StringVarP(&account, "account", "a", "", "Account the rule applies to")
	cmd.Flags().StringVar(&from, "from", "", "Derive the pattern from this sample description")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

// descRulePattern returns the explicit pattern or one extracted from a
// sample description.
func descRulePattern(args []string, from string) (string, error) {
	switch {
	case len(args) == 1 && from != "":
		return "", errors.New("give either a pattern or --from, not both")
	case len(args) == 1:
		return args[0], nil
	case from == "":
		return "", errors.New("a pattern or --from is required")
	}

	pattern := normalize.ExtractPattern(from)
	if normalize.IsDegeneratePattern(pattern) {
		return "", fmt.Errorf("description %q is too generic for a rule (pattern %q)", from, pattern)
	}
	return pattern, nil
}

func listDescRulesCmd() *cobra.Command {
	var (
		account string
		limit   int
		offset  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List description rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			rules, total, err := a.store.ListDescRules(ctx, model.RuleFilter{
				AccountID: account,
				Limit:     limit,
				Offset:    offset,
			})
			if err != nil {
				return fmt.Errorf("failed to list description rules: %w", err)
			}
			if len(rules) == 0 {
				cmd.Println(cli.InfoStyle.Render("No description rules found. Use 'fintrak desc-rules add' to create one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("ID"),
				cli.TableHeaderStyle.Render("Account"),
				cli.TableHeaderStyle.Render("Pattern"),
				cli.TableHeaderStyle.Render("Category"),
				cli.TableHeaderStyle.Render("Source"))
			for _, r := range rules {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.AccountID, r.DescriptionPattern, r.CategoryName, r.Source)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			printRemaining(cmd, offset, len(rules), total)
			return nil
		},
	}

	cmd.Flags().StringVarP(&account, "account", "a", "", "Only rules for this account")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rules to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rules to skip")

	return cmd
}

func deleteDescRuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <rule-id>",
		Short: "Delete a description rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			deleted, err := a.store.DeleteDescRule(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to delete description rule: %w", err)
			}
			if !deleted {
				return fmt.Errorf("description rule %s: %w", args[0], common.ErrNotFound)
			}
			cmd.Println(cli.FormatSuccess("Deleted description rule " + args[0]))
			return nil
		},
	}
}

// lookupCategory finds a category by ID, falling back to its name.
func lookupCategory(ctx context.Context, store *storage.SQLiteStorage, ref string) (*model.Category, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, common.NewUserError("a category is required", nil)
	}

	cat, err := store.GetCategoryByID(ctx, ref)
	if err == nil {
		return cat, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	cat, err = store.GetCategoryByName(ctx, ref)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("unknown category %q (see 'fintrak categories list')", ref), err)
	}
	return cat, nil
}

func printRemaining(cmd *cobra.Command, offset, shown, total int) {
	if end := offset + shown; end < total {
		cmd.Println(cli.SubtleStyle.Render(fmt.Sprintf("%d more (use --offset %d)", total-end, end)))
	}
}

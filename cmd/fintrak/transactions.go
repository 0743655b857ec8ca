package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/crzyc98/fintrak/internal/cli"
	"github.com/crzyc98/fintrak/internal/model"
	"github.com/spf13/cobra"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "Browse stored transactions",
	}

	cmd.AddCommand(listTransactionsCmd())

	return cmd
}

func listTransactionsCmd() *cobra.Command {
	var (
		account string
		limit   int
		offset  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			txns, err := a.store.ListTransactions(ctx, account, limit, offset)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}
			if len(txns) == 0 {
				cmd.Println(cli.InfoStyle.Render("No transactions found. Use 'fintrak import' to load a statement."))
				return nil
			}

			categories, err := a.store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}
			names := make(map[string]string, len(categories))
			for _, cat := range categories {
				names[cat.ID] = cat.Name
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("ID"),
				cli.TableHeaderStyle.Render("Date"),
				cli.TableHeaderStyle.Render("Description"),
				cli.TableHeaderStyle.Render("Amount"),
				cli.TableHeaderStyle.Render("Category"),
				cli.TableHeaderStyle.Render("Source"))
			for _, txn := range txns {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					txn.ID,
					txn.Date.Format("2006-01-02"),
					truncateDescription(txn.Description),
					formatAmount(txn.Amount),
					categoryLabel(txn, names),
					sourceLabel(txn))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&account, "account", "a", "", "Only transactions for this account")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum transactions to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Transactions to skip")

	return cmd
}

// formatAmount renders minor units as a signed decimal.
func formatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

func truncateDescription(s string) string {
	const maxLen = 40
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func categoryLabel(txn model.Transaction, names map[string]string) string {
	if !txn.HasCategory() {
		return cli.SubtleStyle.Render("(uncategorized)")
	}
	if name, ok := names[*txn.CategoryID]; ok {
		return name
	}
	return *txn.CategoryID
}

func sourceLabel(txn model.Transaction) string {
	if txn.CategorizationSource == nil {
		return "-"
	}
	label := string(*txn.CategorizationSource)
	if txn.ConfidenceScore != nil && *txn.CategorizationSource == model.SourceAI {
		label += fmt.Sprintf(" %.2f", *txn.ConfidenceScore)
	}
	return label
}

package main

import (
	"strings"

	"github.com/crzyc98/fintrak/internal/cli"
	"github.com/crzyc98/fintrak/internal/normalize"
	"github.com/spf13/cobra"
)

func normalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <description>...",
		Short: "Preview merchant and pattern extraction",
		Long: `Show the merchant name and description rule pattern fintrak derives from
raw bank descriptions. Nothing is stored.

Example:
  fintrak normalize "POS DEBIT STARBUCKS #1234 SEATTLE WA 98101"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, description := range args {
				result := normalize.Merchant(description)
				pattern := normalize.ExtractPattern(description)

				cmd.Println(cli.BoldStyle.Render(description))
				cmd.Printf("  merchant: %s\n", result.Merchant)
				if normalize.IsDegeneratePattern(pattern) {
					cmd.Printf("  pattern:  %s %s\n", pattern, cli.WarningStyle.Render("(too generic for a rule)"))
				} else {
					cmd.Printf("  pattern:  %s\n", pattern)
				}
				if len(result.TokensRemoved) > 0 {
					cmd.Println(cli.SubtleStyle.Render("  removed:  " + strings.Join(result.TokensRemoved, ", ")))
				}
			}
			return nil
		},
	}
}

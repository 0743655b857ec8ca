package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/crzyc98/fintrak/internal/cli"
	"github.com/crzyc98/fintrak/internal/engine"
	"github.com/crzyc98/fintrak/internal/model"
	"github.com/spf13/cobra"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage categories",
		Long:  `List and add the categories transactions are classified into.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			categories, err := a.store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			if len(categories) == 0 {
				cmd.Println(cli.InfoStyle.Render("No categories found. Use 'fintrak categories add' to create one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("ID"),
				cli.TableHeaderStyle.Render("Name"),
				cli.TableHeaderStyle.Render("Group"))
			for _, cat := range categories {
				name := cat.Name
				if cat.Emoji != nil {
					name = *cat.Emoji + " " + name
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", cat.ID, name, cat.Group)
			}
			return w.Flush()
		},
	}
}

func addCategoryCmd() *cobra.Command {
	var (
		group string
		emoji string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new category",
		Long: `Create a category. Names that differ only in case, spacing or a trailing
plural from an existing category are rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := strings.TrimSpace(args[0])

			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			existing, err := a.store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}
			key := engine.NormalizeCategoryName(name)
			for _, cat := range existing {
				if engine.NormalizeCategoryName(cat.Name) == key {
					return fmt.Errorf("category %q already exists as %q", name, cat.Name)
				}
			}

			cat := &model.Category{
				Name:  name,
				Group: model.ParseCategoryGroup(group),
			}
			if emoji != "" {
				cat.Emoji = &emoji
			}
			if err := a.store.CreateCategory(ctx, cat); err != nil {
				return fmt.Errorf("failed to create category: %w", err)
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Created category %q in %s (ID: %s)", cat.Name, cat.Group, cat.ID)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&group, "group", "g", string(model.GroupOther), "Category group (Essential, Lifestyle, Income, Transfer, Other)")
	cmd.Flags().StringVar(&emoji, "emoji", "", "Display emoji")

	return cmd
}

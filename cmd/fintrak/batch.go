package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/crzyc98/fintrak/internal/cli"
	"github.com/crzyc98/fintrak/internal/engine"
	"github.com/crzyc98/fintrak/internal/jobs"
	"github.com/spf13/cobra"
)

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run and inspect classification batches",
		Long:  `Start a background classification run with live progress, or inspect the audit record of past runs.`,
	}

	cmd.AddCommand(batchStartCmd())
	cmd.AddCommand(batchListCmd())
	cmd.AddCommand(batchShowCmd())

	return cmd
}

func batchStartCmd() *cobra.Command {
	var (
		forceAI   bool
		batchSize int
		interval  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "start [transaction-ids...]",
		Short: "Classify in the background with a progress bar",
		Long: `Start a background classification run and follow its progress.

The run keeps going if the progress display fails; the final state is always
recorded on the batch. Only one run may be active at a time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
			ctx := handler.HandleInterrupts(cmd.Context(), true)
			defer handler.Stop()

			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			handle, err := a.engine.TriggerBatchClassification(ctx, engine.Options{
				TransactionIDs: args,
				ForceAI:        forceAI,
				BatchSize:      batchSize,
			})
			if err != nil {
				return fmt.Errorf("failed to start batch: %w", err)
			}

			cmd.Println(cli.FormatInfo(fmt.Sprintf("Batch %s started with %d transactions", handle.BatchID, handle.TotalTransactions)))

			state, err := cli.WatchBatch(ctx, cmd.OutOrStdout(), interval, func() (jobs.BatchJobState, bool) {
				return a.engine.GetBatchProgress(handle.BatchID)
			})
			if err != nil {
				if handler.WasInterrupted() {
					cmd.Println(cli.FormatInfo("Waiting for the running batch to finish..."))
					return nil
				}
				return fmt.Errorf("failed to follow batch %s: %w", handle.BatchID, err)
			}

			cmd.Println(cli.FormatBatchState(state, time.Now()))
			if state.Status == jobs.StatusFailed {
				return fmt.Errorf("batch %s failed: %s", state.BatchID, state.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&forceAI, "force-ai", false, "Bypass merchant and description rules")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, fmt.Sprintf("Transactions per AI call (%d-%d, 0 = configured default)", engine.MinBatchSize, engine.MaxBatchSize))
	cmd.Flags().DurationVar(&interval, "poll", cli.DefaultPollInterval, "Progress refresh interval")

	return cmd
}

func batchListCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent batches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			batches, total, err := a.store.ListBatches(ctx, limit, offset)
			if err != nil {
				return fmt.Errorf("failed to list batches: %w", err)
			}

			if len(batches) == 0 {
				cmd.Println(cli.InfoStyle.Render("No batches yet. Use 'fintrak classify' to run one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("ID"),
				cli.TableHeaderStyle.Render("Started"),
				cli.TableHeaderStyle.Render("Status"),
				cli.TableHeaderStyle.Render("Total"),
				cli.TableHeaderStyle.Render("OK"),
				cli.TableHeaderStyle.Render("Failed"),
				cli.TableHeaderStyle.Render("Skipped"))
			for _, b := range batches {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
					b.ID,
					b.StartedAt.Local().Format(time.DateTime),
					cli.BatchStatus(b),
					b.TransactionCount,
					b.SuccessCount,
					b.FailureCount,
					b.SkippedCount)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if shown := offset + len(batches); shown < total {
				cmd.Println(cli.SubtleStyle.Render(fmt.Sprintf("%d more (use --offset %d)", total-shown, shown)))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum batches to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Batches to skip")

	return cmd
}

func batchShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := strings.TrimSpace(args[0])

			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			// Live progress only exists for runs started by this process.
			if state, ok := a.engine.GetBatchProgress(id); ok {
				cmd.Println(cli.FormatBatchState(state, time.Now()))
				return nil
			}

			batch, err := a.store.GetBatch(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to get batch: %w", err)
			}
			cmd.Println(cli.FormatBatch(*batch))
			return nil
		},
	}
}

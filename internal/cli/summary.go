package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/crzyc98/fintrak/internal/jobs"
	"github.com/crzyc98/fintrak/internal/model"
)

// FormatBatchResult renders the outcome of a synchronous run.
func FormatBatchResult(result model.BatchResult) string {
	if result.TotalTransactions == 0 {
		return FormatInfo("No transactions need classification.")
	}

	var sb strings.Builder
	writeRow(&sb, "Batch", result.BatchID)
	writeRow(&sb, "Transactions", fmt.Sprintf("%d", result.TotalTransactions))
	writeCounters(&sb, result.BatchCounters)
	writeRow(&sb, "Duration", result.Duration.Round(time.Millisecond).String())
	if result.ErrorMessage != "" {
		writeRow(&sb, "Error", ErrorStyle.Render(result.ErrorMessage))
	}
	return RenderBox(RobotIcon+" Classification Summary", strings.TrimRight(sb.String(), "\n"))
}

// FormatBatchState renders the live progress of a batch.
func FormatBatchState(state jobs.BatchJobState, now time.Time) string {
	var sb strings.Builder
	writeRow(&sb, "Batch", state.BatchID)
	writeRow(&sb, "Status", formatStatus(string(state.Status)))
	writeRow(&sb, "Progress", fmt.Sprintf("%d/%d (%.0f%%)",
		state.ProcessedTransactions, state.TotalTransactions, state.Percent()))
	writeCounters(&sb, model.BatchCounters{
		SuccessCount:           state.SuccessCount,
		FailureCount:           state.FailureCount,
		RuleMatchCount:         state.RuleMatchCount,
		DescRuleMatchCount:     state.DescRuleMatchCount,
		AIMatchCount:           state.AIMatchCount,
		SkippedCount:           state.SkippedCount,
		CategoriesCreatedCount: state.CategoriesCreatedCount,
	})
	writeRow(&sb, "Duration", state.Duration(now).Round(time.Millisecond).String())
	if state.ErrorMessage != "" {
		writeRow(&sb, "Error", ErrorStyle.Render(state.ErrorMessage))
	}
	return RenderBox(RobotIcon+" Batch Progress", strings.TrimRight(sb.String(), "\n"))
}

// FormatBatch renders a persisted batch record.
func FormatBatch(batch model.CategorizationBatch) string {
	var sb strings.Builder
	writeRow(&sb, "Batch", batch.ID)
	writeRow(&sb, "Status", formatStatus(BatchStatus(batch)))
	writeRow(&sb, "Started", batch.StartedAt.Local().Format(time.DateTime))
	writeRow(&sb, "Transactions", fmt.Sprintf("%d", batch.TransactionCount))
	writeCounters(&sb, model.BatchCounters{
		SuccessCount:           batch.SuccessCount,
		FailureCount:           batch.FailureCount,
		RuleMatchCount:         batch.RuleMatchCount,
		DescRuleMatchCount:     batch.DescRuleMatchCount,
		AIMatchCount:           batch.AIMatchCount,
		SkippedCount:           batch.SkippedCount,
		CategoriesCreatedCount: batch.CategoriesCreatedCount,
	})
	if batch.DurationMS != nil {
		writeRow(&sb, "Duration", (time.Duration(*batch.DurationMS) * time.Millisecond).String())
	}
	if batch.ErrorMessage != nil {
		writeRow(&sb, "Error", ErrorStyle.Render(*batch.ErrorMessage))
	}
	return RenderBox(RobotIcon+" Batch", strings.TrimRight(sb.String(), "\n"))
}

// BatchStatus derives the status of a persisted batch.
func BatchStatus(batch model.CategorizationBatch) string {
	switch {
	case batch.CompletedAt == nil:
		return string(jobs.StatusRunning)
	case batch.ErrorMessage != nil:
		return string(jobs.StatusFailed)
	default:
		return string(jobs.StatusCompleted)
	}
}

func formatStatus(status string) string {
	switch status {
	case string(jobs.StatusCompleted):
		return SuccessStyle.Render(status)
	case string(jobs.StatusFailed):
		return ErrorStyle.Render(status)
	default:
		return WarningStyle.Render(status)
	}
}

func writeCounters(sb *strings.Builder, c model.BatchCounters) {
	writeRow(sb, "Classified", SuccessStyle.Render(fmt.Sprintf("%d", c.SuccessCount)))
	writeRow(sb, "  Merchant rules", fmt.Sprintf("%d", c.RuleMatchCount))
	writeRow(sb, "  Description rules", fmt.Sprintf("%d", c.DescRuleMatchCount))
	writeRow(sb, "  AI", fmt.Sprintf("%d", c.AIMatchCount))
	writeRow(sb, "Skipped", WarningStyle.Render(fmt.Sprintf("%d", c.SkippedCount)))
	writeRow(sb, "Failed", ErrorStyle.Render(fmt.Sprintf("%d", c.FailureCount)))
	if c.CategoriesCreatedCount > 0 {
		writeRow(sb, "New categories", fmt.Sprintf("%d", c.CategoriesCreatedCount))
	}
}

func writeRow(sb *strings.Builder, label, value string) {
	fmt.Fprintf(sb, "%s %s\n", SubtleStyle.Render(fmt.Sprintf("%-20s", label+":")), value)
}

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/crzyc98/fintrak/internal/jobs"
	"github.com/schollz/progressbar/v3"
)

// DefaultPollInterval is how often WatchBatch samples progress.
const DefaultPollInterval = 250 * time.Millisecond

// StateFunc returns the live state of a batch and whether it is known.
type StateFunc func() (jobs.BatchJobState, bool)

// NewProgressBar creates the bar used for classification runs.
func NewProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

// WatchBatch renders the progress of a running batch until it leaves the
// running state or ctx ends. It returns the last state observed.
func WatchBatch(ctx context.Context, w io.Writer, interval time.Duration, state StateFunc) (jobs.BatchJobState, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	current, ok := state()
	if !ok {
		return jobs.BatchJobState{}, fmt.Errorf("batch progress is not available")
	}

	bar := NewProgressBar(w, current.TotalTransactions, "Classifying transactions...")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := bar.Set(current.ProcessedTransactions); err != nil {
			slog.Debug("Failed to update progress bar", "error", err)
		}
		if current.Status != jobs.StatusRunning {
			if err := bar.Finish(); err != nil {
				slog.Debug("Failed to finish progress bar", "error", err)
			}
			return current, nil
		}

		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-ticker.C:
		}

		next, ok := state()
		if !ok {
			return current, fmt.Errorf("batch %s is no longer tracked", current.BatchID)
		}
		current = next
	}
}

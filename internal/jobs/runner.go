package jobs

import (
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Runner executes background jobs one at a time.
type Runner struct {
	group  errgroup.Group
	logger *slog.Logger
}

// NewRunner creates a runner that allows a single in-flight job.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{logger: logger}
	r.group.SetLimit(1)
	return r
}

// Go starts fn in the background. It returns ErrJobRunning without starting
// fn when a job is already in flight. Errors from fn are logged.
func (r *Runner) Go(name string, fn func() error) error {
	started := r.group.TryGo(func() error {
		if err := fn(); err != nil {
			r.logger.Error("Background job failed", "job", name, "error", err)
		}
		return nil
	})
	if !started {
		return ErrJobRunning
	}
	return nil
}

// Wait blocks until the in-flight job, if any, returns.
func (r *Runner) Wait() {
	_ = r.group.Wait()
}

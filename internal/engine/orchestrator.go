// Package engine implements the transaction classification pipeline: a
// cascade of merchant and description rules followed by batched AI
// classification and enrichment.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/crzyc98/fintrak/internal/common"
	"github.com/crzyc98/fintrak/internal/jobs"
	"github.com/crzyc98/fintrak/internal/model"
	"github.com/crzyc98/fintrak/internal/service"
)

// Batch size bounds for a single provider call.
const (
	MinBatchSize = 10
	MaxBatchSize = 200
)

// ErrInvalidBatchSize is returned when a requested batch size is out of range.
var ErrInvalidBatchSize = fmt.Errorf("batch size must be between %d and %d", MinBatchSize, MaxBatchSize)

// Config holds configuration options for the orchestrator.
type Config struct {
	BatchSize               int
	ConfidenceThreshold     float64
	RuleConfidenceThreshold float64
	// Timeout bounds each provider call. Zero uses the client default.
	Timeout time.Duration
	// CandidateLimit caps the transactions fetched per run. Zero means no cap.
	CandidateLimit int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:               50,
		ConfidenceThreshold:     0.7,
		RuleConfidenceThreshold: 0.9,
	}
}

// Options narrow a single classification run.
type Options struct {
	TransactionIDs []string
	ForceAI        bool
	// BatchSize overrides Config.BatchSize when non-zero.
	BatchSize int
}

// Orchestrator runs classification batches.
type Orchestrator struct {
	store    service.Storage
	ai       AIClient
	registry *jobs.Registry
	runner   *jobs.Runner
	logger   *slog.Logger
	cfg      Config
}

// New creates an orchestrator. ai may be nil when no provider is configured;
// rule matching still works but AI work is counted as failed. A nil registry
// or runner gets a fresh instance. A zero BatchSize uses the default; the
// thresholds are taken as given, so 0 accepts every result.
func New(store service.Storage, ai AIClient, registry *jobs.Registry, runner *jobs.Runner, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = jobs.NewRegistry(jobs.SystemClock)
	}
	if runner == nil {
		runner = jobs.NewRunner(logger)
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	return &Orchestrator{
		store:    store,
		ai:       ai,
		registry: registry,
		runner:   runner,
		cfg:      cfg,
		logger:   logger,
	}
}

// progressFunc receives the running counters and the number of candidates
// handled so far.
type progressFunc func(counters model.BatchCounters, processed int)

// TriggerCategorization classifies candidates synchronously and returns the
// final counters. A run with no candidates returns an empty result without
// creating a batch record.
func (o *Orchestrator) TriggerCategorization(ctx context.Context, opts Options) (*model.BatchResult, error) {
	batchSize, err := o.batchSize(opts.BatchSize)
	if err != nil {
		return nil, err
	}

	candidates, err := o.store.GetCandidateTransactions(ctx, opts.TransactionIDs, o.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate transactions: %w", err)
	}
	if len(candidates) == 0 {
		o.logger.Info("No transactions to classify")
		return &model.BatchResult{}, nil
	}

	batch := &model.CategorizationBatch{TransactionCount: len(candidates)}
	if err := o.store.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	return o.runBatch(ctx, batch.ID, candidates, opts, batchSize, nil)
}

// TriggerBatchClassification starts a background run and returns at once.
// Only one background run may be active at a time.
func (o *Orchestrator) TriggerBatchClassification(ctx context.Context, opts Options) (*model.BatchHandle, error) {
	batchSize, err := o.batchSize(opts.BatchSize)
	if err != nil {
		return nil, err
	}
	if o.registry.HasRunning() {
		return nil, common.ErrConflict
	}
	if o.ai == nil {
		return nil, common.ErrNotConfigured
	}

	candidates, err := o.store.GetCandidateTransactions(ctx, opts.TransactionIDs, o.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate transactions: %w", err)
	}

	batch := &model.CategorizationBatch{TransactionCount: len(candidates)}
	if err := o.store.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	if _, err := o.registry.Start(batch.ID, len(candidates)); err != nil {
		o.abandonBatch(ctx, batch.ID, err)
		if errors.Is(err, jobs.ErrJobRunning) {
			return nil, common.ErrConflict
		}
		return nil, err
	}

	workCtx := context.WithoutCancel(ctx)
	err = o.runner.Go(batch.ID, func() error {
		return o.runAsync(workCtx, batch.ID, candidates, opts, batchSize)
	})
	if err != nil {
		o.registry.Finish(batch.ID, jobs.StatusFailed, err.Error())
		o.abandonBatch(ctx, batch.ID, err)
		if errors.Is(err, jobs.ErrJobRunning) {
			return nil, common.ErrConflict
		}
		return nil, err
	}

	o.logger.Info("Started batch classification",
		"batch_id", batch.ID,
		"transactions", len(candidates),
		"batch_size", batchSize)

	return &model.BatchHandle{
		BatchID:           batch.ID,
		TotalTransactions: len(candidates),
		Status:            string(jobs.StatusRunning),
	}, nil
}

// GetBatchProgress returns the live snapshot of a run started by this
// process. Runs that finished long ago, or ran in another process, are only
// available from the persisted batch record.
func (o *Orchestrator) GetBatchProgress(batchID string) (jobs.BatchJobState, bool) {
	return o.registry.Get(batchID)
}

// GetUnclassifiedCount returns the number of transactions without a category.
func (o *Orchestrator) GetUnclassifiedCount(ctx context.Context) (int, error) {
	count, err := o.store.CountUnclassified(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count unclassified transactions: %w", err)
	}
	return count, nil
}

// Wait blocks until the background run, if any, has finished.
func (o *Orchestrator) Wait() {
	o.runner.Wait()
}

func (o *Orchestrator) batchSize(requested int) (int, error) {
	if requested == 0 {
		return o.cfg.BatchSize, nil
	}
	if requested < MinBatchSize || requested > MaxBatchSize {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, requested)
	}
	return requested, nil
}

func (o *Orchestrator) runAsync(ctx context.Context, batchID string, candidates []model.Transaction, opts Options, batchSize int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch %s panicked: %v", batchID, r)
			o.abandonBatch(ctx, batchID, err)
			o.registry.Finish(batchID, jobs.StatusFailed, err.Error())
		}
	}()

	progress := func(counters model.BatchCounters, processed int) {
		o.registry.Update(batchID, func(s *jobs.BatchJobState) {
			s.ProcessedTransactions = processed
			s.SuccessCount = counters.SuccessCount
			s.FailureCount = counters.FailureCount
			s.SkippedCount = counters.SkippedCount
			s.RuleMatchCount = counters.RuleMatchCount
			s.DescRuleMatchCount = counters.DescRuleMatchCount
			s.AIMatchCount = counters.AIMatchCount
			s.CategoriesCreatedCount = counters.CategoriesCreatedCount
		})
		if err := o.store.UpdateBatch(ctx, batchID, model.BatchUpdate{Counters: &counters}); err != nil {
			o.logger.Warn("Failed to persist batch progress", "batch_id", batchID, "error", err)
		}
	}

	result, err := o.runBatch(ctx, batchID, candidates, opts, batchSize, progress)
	if err != nil {
		o.registry.Finish(batchID, jobs.StatusFailed, err.Error())
		return err
	}

	progress(result.BatchCounters, len(candidates))
	status := jobs.StatusCompleted
	if result.ErrorMessage != "" {
		status = jobs.StatusFailed
	}
	o.registry.Finish(batchID, status, result.ErrorMessage)
	return nil
}

// runBatch executes one run and finalizes its batch record. Errors from the
// run itself are recorded on the batch; only a failure to finalize the
// record is returned.
func (o *Orchestrator) runBatch(ctx context.Context, batchID string, candidates []model.Transaction, opts Options, batchSize int, progress progressFunc) (*model.BatchResult, error) {
	start := time.Now()
	total := len(candidates)

	counters, runErr := o.execute(ctx, candidates, opts, batchSize, progress)

	result := &model.BatchResult{
		BatchID:           batchID,
		TotalTransactions: total,
	}
	update := model.BatchUpdate{}
	if runErr != nil {
		counters.FailureCount = max(0, total-counters.SuccessCount-counters.SkippedCount)
		msg := runErr.Error()
		update.ErrorMessage = &msg
		result.ErrorMessage = msg
		o.logger.Error("Classification run failed", "batch_id", batchID, "error", runErr)
	}
	update.Counters = &counters
	result.BatchCounters = counters

	batch, err := o.store.CompleteBatch(context.WithoutCancel(ctx), batchID, update)
	if err != nil {
		return nil, fmt.Errorf("failed to complete batch %s: %w", batchID, err)
	}
	result.Duration = time.Since(start)
	if batch.DurationMS != nil {
		result.Duration = time.Duration(*batch.DurationMS) * time.Millisecond
	}

	o.logger.Info("Classification complete",
		"batch_id", batchID,
		"total", total,
		"success", counters.SuccessCount,
		"failed", counters.FailureCount,
		"skipped", counters.SkippedCount,
		"rule_matches", counters.RuleMatchCount,
		"desc_rule_matches", counters.DescRuleMatchCount,
		"ai_matches", counters.AIMatchCount,
		"categories_created", counters.CategoriesCreatedCount,
		"duration", result.Duration)

	return result, nil
}

// execute runs the rule cascade and the AI pass over candidates. Counters
// are valid even when an error is returned.
func (o *Orchestrator) execute(ctx context.Context, candidates []model.Transaction, opts Options, batchSize int, progress progressFunc) (model.BatchCounters, error) {
	var counters model.BatchCounters
	processed := 0
	report := func() {
		if progress != nil {
			progress(counters, processed)
		}
	}

	queue := candidates
	if !opts.ForceAI {
		var err error
		queue, err = o.applyRules(ctx, candidates, &counters)
		if err != nil {
			return counters, err
		}
		processed = len(candidates) - len(queue)
		report()
	}

	pending := make([]model.Transaction, 0, len(queue))
	for _, txn := range queue {
		if strings.TrimSpace(promptDescription(txn)) == "" {
			o.logger.Debug("Skipping transaction with empty description", "transaction_id", txn.ID)
			counters.SkippedCount++
			processed++
			continue
		}
		pending = append(pending, txn)
	}
	if len(pending) == 0 {
		report()
		return counters, nil
	}

	if o.ai == nil {
		counters.FailureCount += len(pending)
		return counters, common.ErrNotConfigured
	}

	categories, err := o.store.GetCategories(ctx)
	if err != nil {
		return counters, fmt.Errorf("failed to load categories: %w", err)
	}
	if len(categories) == 0 {
		counters.FailureCount += len(pending)
		return counters, common.ErrNoCategories
	}
	resolver := newCategoryResolver(o.store, categories)

	o.logger.Info("Classifying with AI",
		"provider", o.ai.Name(),
		"transactions", len(pending),
		"batch_size", batchSize)

	for start := 0; start < len(pending); start += batchSize {
		end := min(start+batchSize, len(pending))
		if err := o.classifyChunk(ctx, pending[start:end], resolver, &counters); err != nil {
			counters.CategoriesCreatedCount = resolver.created
			return counters, err
		}
		processed += end - start
		counters.CategoriesCreatedCount = resolver.created
		report()
	}

	return counters, nil
}

// applyRules runs the merchant and description rule cascade over candidates
// lacking a category and returns the transactions that still need an AI
// pass. Manual and already-categorized transactions go straight to the queue
// for enrichment.
func (o *Orchestrator) applyRules(ctx context.Context, candidates []model.Transaction, counters *model.BatchCounters) ([]model.Transaction, error) {
	queue := make([]model.Transaction, 0, len(candidates))

	for _, txn := range candidates {
		if txn.HasCategory() || txn.IsManual() {
			queue = append(queue, txn)
			continue
		}

		if merchant := txn.Merchant(); merchant != "" {
			rule, err := o.store.FindMatchingRule(ctx, merchant)
			if err != nil {
				return nil, fmt.Errorf("failed to match merchant rules: %w", err)
			}
			if rule != nil {
				if o.applyRule(ctx, txn, rule.CategoryID, model.SourceRule, counters) {
					counters.RuleMatchCount++
				}
				continue
			}
		}

		rule, err := o.store.FindMatchingDescRule(ctx, txn.Description, txn.AccountID)
		if err != nil {
			return nil, fmt.Errorf("failed to match description rules: %w", err)
		}
		if rule != nil {
			if o.applyRule(ctx, txn, rule.CategoryID, model.SourceDescRule, counters) {
				counters.DescRuleMatchCount++
			}
			continue
		}

		queue = append(queue, txn)
	}

	return queue, nil
}

func (o *Orchestrator) applyRule(ctx context.Context, txn model.Transaction, categoryID string, source model.CategorizationSource, counters *model.BatchCounters) bool {
	update := model.TransactionUpdate{
		CategoryID:           &categoryID,
		ConfidenceScore:      model.Ptr(1.0),
		CategorizationSource: &source,
	}
	if err := o.store.UpdateTransaction(ctx, txn.ID, update); err != nil {
		o.logger.Warn("Failed to apply rule",
			"transaction_id", txn.ID,
			"source", source,
			"error", err)
		counters.FailureCount++
		return false
	}
	counters.SuccessCount++
	return true
}

// promptDescription is the text sent to the provider for txn.
func promptDescription(txn model.Transaction) string {
	if txn.OriginalDescription != "" {
		return txn.OriginalDescription
	}
	return txn.Description
}

func (o *Orchestrator) abandonBatch(ctx context.Context, batchID string, cause error) {
	msg := cause.Error()
	if _, err := o.store.CompleteBatch(context.WithoutCancel(ctx), batchID, model.BatchUpdate{ErrorMessage: &msg}); err != nil {
		o.logger.Warn("Failed to close abandoned batch", "batch_id", batchID, "error", err)
	}
}

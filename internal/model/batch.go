package model

import "time"

// CategorizationBatch is the durable audit record of one classification run.
type CategorizationBatch struct {
	StartedAt              time.Time
	ImportID               *string
	DurationMS             *int64
	ErrorMessage           *string
	CompletedAt            *time.Time
	ID                     string
	TransactionCount       int
	SuccessCount           int
	FailureCount           int
	RuleMatchCount         int
	DescRuleMatchCount     int
	AIMatchCount           int
	SkippedCount           int
	CategoriesCreatedCount int
}

// BatchCounters are the running totals of a classification run.
type BatchCounters struct {
	SuccessCount           int
	FailureCount           int
	RuleMatchCount         int
	DescRuleMatchCount     int
	AIMatchCount           int
	SkippedCount           int
	CategoriesCreatedCount int
}

// BatchResult is returned by a synchronous classification run.
type BatchResult struct {
	ErrorMessage string
	BatchID      string
	BatchCounters
	TotalTransactions int
	Duration          time.Duration
}

// BatchHandle is returned when an asynchronous run is accepted.
type BatchHandle struct {
	BatchID           string
	Status            string
	TotalTransactions int
}

// BatchUpdate is a partial update of a batch record. Nil fields are left alone.
type BatchUpdate struct {
	TransactionCount *int
	Counters         *BatchCounters
	ErrorMessage     *string
}

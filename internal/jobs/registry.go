// Package jobs tracks asynchronous classification runs. A Registry holds the
// live progress of each run and guarantees at most one is running per
// process; a Runner executes the background work.
package jobs

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrJobRunning is returned when a run is started while another is running.
var ErrJobRunning = errors.New("a batch job is already running")

// Status is the lifecycle state of a batch job.
type Status string

// Job statuses.
const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// defaultRetention is how many finished jobs stay queryable.
const defaultRetention = 20

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// BatchJobState is the in-memory progress snapshot of one run.
type BatchJobState struct {
	StartedAt              time.Time
	CompletedAt            *time.Time
	BatchID                string
	Status                 Status
	ErrorMessage           string
	TotalTransactions      int
	ProcessedTransactions  int
	SuccessCount           int
	FailureCount           int
	SkippedCount           int
	RuleMatchCount         int
	DescRuleMatchCount     int
	AIMatchCount           int
	CategoriesCreatedCount int
}

// Duration returns the elapsed time of the run, up to now when still running.
func (s BatchJobState) Duration(now time.Time) time.Duration {
	if s.CompletedAt != nil {
		return s.CompletedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}

// Percent returns processed over total as a percentage.
func (s BatchJobState) Percent() float64 {
	if s.TotalTransactions == 0 {
		if s.Status == StatusRunning {
			return 0
		}
		return 100
	}
	return float64(s.ProcessedTransactions) / float64(s.TotalTransactions) * 100
}

// Registry is a concurrency-safe set of batch job states.
type Registry struct {
	clock     Clock
	jobs      map[string]*BatchJobState
	retention int
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry. A nil clock uses SystemClock.
func NewRegistry(clock Clock) *Registry {
	if clock == nil {
		clock = SystemClock
	}
	return &Registry{
		clock:     clock,
		jobs:      make(map[string]*BatchJobState),
		retention: defaultRetention,
	}
}

// Start registers a running job. It fails with ErrJobRunning if any job is
// currently running.
func (r *Registry) Start(batchID string, total int) (BatchJobState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hasRunningLocked() {
		return BatchJobState{}, ErrJobRunning
	}

	state := &BatchJobState{
		BatchID:           batchID,
		Status:            StatusRunning,
		TotalTransactions: total,
		StartedAt:         r.clock.Now(),
	}
	r.jobs[batchID] = state
	r.pruneLocked()
	return *state, nil
}

// Update applies fn to the state of a running job. Updates to unknown or
// finished jobs are ignored.
func (r *Registry) Update(batchID string, fn func(*BatchJobState)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.jobs[batchID]
	if !ok || state.Status != StatusRunning {
		return
	}
	fn(state)
}

// Finish moves a job to a terminal status.
func (r *Registry) Finish(batchID string, status Status, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.jobs[batchID]
	if !ok {
		return
	}
	now := r.clock.Now()
	state.Status = status
	state.ErrorMessage = errMsg
	state.CompletedAt = &now
}

// Get returns a copy of a job's state.
func (r *Registry) Get(batchID string) (BatchJobState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.jobs[batchID]
	if !ok {
		return BatchJobState{}, false
	}
	return *state, true
}

// HasRunning reports whether any job is running.
func (r *Registry) HasRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasRunningLocked()
}

func (r *Registry) hasRunningLocked() bool {
	for _, state := range r.jobs {
		if state.Status == StatusRunning {
			return true
		}
	}
	return false
}

// pruneLocked drops the oldest finished jobs beyond the retention limit.
func (r *Registry) pruneLocked() {
	var finished []*BatchJobState
	for _, state := range r.jobs {
		if state.Status != StatusRunning {
			finished = append(finished, state)
		}
	}
	if len(finished) <= r.retention {
		return
	}

	sort.Slice(finished, func(i, j int) bool {
		return finished[i].StartedAt.Before(finished[j].StartedAt)
	})
	for _, state := range finished[:len(finished)-r.retention] {
		delete(r.jobs, state.BatchID)
	}
}

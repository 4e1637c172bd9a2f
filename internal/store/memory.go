// internal/store/memory.go
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harvex/leadharvest/pkg/types"
)

// MemoryStore is an in-memory JobStore. It backs tests and the zero-config
// CLI path, and implements the same atomicity contract as the durable
// backends.
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]*types.Job
	results map[string][]types.Result
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:    make(map[string]*types.Job),
		results: make(map[string][]types.Result),
	}
}

// CreateJob stores a new job record and returns its id.
func (m *MemoryStore) CreateJob(_ context.Context, job *types.Job) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = types.StatusPending
	}

	stored := *job
	m.jobs[job.ID] = &stored
	return job.ID, nil
}

// UpdateJob applies a partial update atomically under the store lock.
func (m *MemoryStore) UpdateJob(_ context.Context, id string, update JobUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return errJobNotFound(id)
	}
	if job.Status.Terminal() {
		return errAlreadyTerminal(id, job.Status)
	}

	applyUpdate(job, update)
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// GetJob returns a copy of the job record.
func (m *MemoryStore) GetJob(_ context.Context, id string) (*types.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, errJobNotFound(id)
	}
	copied := *job
	return &copied, nil
}

// ListJobs returns up to limit jobs, newest first.
func (m *MemoryStore) ListJobs(_ context.Context, limit int) ([]types.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]types.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })

	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// SaveResult appends an immutable result row for a job.
func (m *MemoryStore) SaveResult(_ context.Context, result *types.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[result.JobID]; !ok {
		return errJobNotFound(result.JobID)
	}
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.ScrapedAt.IsZero() {
		result.ScrapedAt = time.Now().UTC()
	}
	m.results[result.JobID] = append(m.results[result.JobID], *result)
	return nil
}

// GetResults returns all results for a job in insertion order.
func (m *MemoryStore) GetResults(_ context.Context, jobID string) ([]types.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := m.results[jobID]
	out := make([]types.Result, len(results))
	copy(out, results)
	return out, nil
}

// Stats aggregates job counts for the dashboard.
func (m *MemoryStore) Stats(ctx context.Context) (*types.JobStats, error) {
	m.mu.RLock()
	stats := &types.JobStats{}
	for _, job := range m.jobs {
		stats.TotalJobs++
		switch job.Status {
		case types.StatusCompleted:
			stats.CompletedJobs++
		case types.StatusFailed:
			stats.FailedJobs++
		case types.StatusRunning:
			stats.RunningJobs++
		}
	}
	for _, results := range m.results {
		stats.TotalResults += len(results)
	}
	m.mu.RUnlock()

	recent, err := m.ListJobs(ctx, 10)
	if err != nil {
		return nil, err
	}
	stats.RecentJobs = recent
	return stats, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }

// applyUpdate copies non-nil update fields onto the job record.
func applyUpdate(job *types.Job, update JobUpdate) {
	if update.Status != nil {
		job.Status = *update.Status
	}
	if update.ProgressPercent != nil {
		job.ProgressPercent = *update.ProgressPercent
	}
	if update.TotalURLs != nil {
		job.TotalURLs = *update.TotalURLs
	}
	if update.CompletedURLs != nil {
		job.CompletedURLs = *update.CompletedURLs
	}
	if update.FailedURLs != nil {
		job.FailedURLs = *update.FailedURLs
	}
	if update.ResultsCount != nil {
		job.ResultsCount = *update.ResultsCount
	}
	if update.ErrorMessage != nil {
		job.ErrorMessage = *update.ErrorMessage
	}
	if update.URLs != nil {
		job.URLs = update.URLs
	}
	if update.StartedAt != nil {
		job.StartedAt = *update.StartedAt
	}
	if update.CompletedAt != nil {
		job.CompletedAt = *update.CompletedAt
	}
}

// internal/store/store.go

// Package store provides the durable job/result record contract and its
// backends. The extraction core only depends on the JobStore interface;
// persistence technology stays behind it.
package store

import (
	"context"
	"time"

	"github.com/harvex/leadharvest/internal/utils"
	"github.com/harvex/leadharvest/pkg/types"
)

// JobUpdate is a partial job mutation. Nil fields are left unchanged. A
// store must apply the whole update atomically with respect to concurrent
// readers: no partially-visible progress states.
type JobUpdate struct {
	Status          *types.JobStatus
	ProgressPercent *int
	TotalURLs       *int
	CompletedURLs   *int
	FailedURLs      *int
	ResultsCount    *int
	ErrorMessage    *string
	URLs            []string
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// JobStore is the persistence contract consumed by the orchestrator and
// the API facade. Terminal job records are immutable: every backend
// rejects updates to a job whose status is already terminal.
type JobStore interface {
	CreateJob(ctx context.Context, job *types.Job) (string, error)
	UpdateJob(ctx context.Context, id string, update JobUpdate) error
	GetJob(ctx context.Context, id string) (*types.Job, error)
	ListJobs(ctx context.Context, limit int) ([]types.Job, error)

	SaveResult(ctx context.Context, result *types.Result) error
	GetResults(ctx context.Context, jobID string) ([]types.Result, error)

	Stats(ctx context.Context) (*types.JobStats, error)

	Close() error
}

// ErrJobNotFound is returned when a job id does not exist.
func errJobNotFound(id string) error {
	return utils.NewErrorf(utils.ErrCodeJobNotFound, "job %q not found", id)
}

// errAlreadyTerminal is returned when an update targets a job that has
// already reached a terminal state.
func errAlreadyTerminal(id string, status types.JobStatus) error {
	return utils.NewErrorf(utils.ErrCodeAlreadyTerminal, "job %q is already %s", id, status)
}

// terminalStatuses lists the states past which a job record is immutable,
// for backends that filter in the query itself.
func terminalStatuses() []types.JobStatus {
	return []types.JobStatus{types.StatusCompleted, types.StatusFailed, types.StatusCancelled}
}

// helpers for building updates

func StatusPtr(s types.JobStatus) *types.JobStatus { return &s }
func IntPtr(i int) *int                            { return &i }
func StringPtr(s string) *string                   { return &s }
func TimePtr(t time.Time) *time.Time               { return &t }

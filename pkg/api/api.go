// pkg/api/api.go

// Package api is the embeddable client surface: one Engine wiring the
// adapter registry, job store, search provider and orchestrator behind a
// small method set. The HTTP server and the CLI are both thin layers over
// this package.
package api

import (
	"context"

	"github.com/harvex/leadharvest/internal/adapter"
	"github.com/harvex/leadharvest/internal/config"
	"github.com/harvex/leadharvest/internal/fetch"
	"github.com/harvex/leadharvest/internal/monitoring"
	"github.com/harvex/leadharvest/internal/orchestrate"
	"github.com/harvex/leadharvest/internal/search"
	"github.com/harvex/leadharvest/internal/store"
	"github.com/harvex/leadharvest/internal/utils"
	"github.com/harvex/leadharvest/pkg/types"
)

// Re-export request/domain types so embedders only import this package.
type JobRequest = orchestrate.JobRequest
type Job = types.Job
type Result = types.Result
type Adapter = types.Adapter
type AdapterSummary = types.AdapterSummary
type JobStats = types.JobStats

// Engine is the top-level handle over the whole system.
type Engine struct {
	cfg        *config.Config
	store      store.JobStore
	registry   *adapter.Registry
	metrics    *monitoring.Metrics
	supervisor *orchestrate.Supervisor
}

// New assembles an engine from configuration: opens the job store, loads
// (and seeds) the adapter registry and starts the supervisor.
func New(ctx context.Context, cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	utils.SetDefaultLevel(utils.ParseLevel(cfg.LogLevel))

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	registry, err := adapter.NewRegistry(cfg.AdapterDir)
	if err != nil {
		st.Close()
		return nil, err
	}

	metrics := monitoring.New("leadharvest")
	searcher := search.NewDuckDuckGo(fetch.NewStaticClient(cfg.Fetch))

	return &Engine{
		cfg:        cfg,
		store:      st,
		registry:   registry,
		metrics:    metrics,
		supervisor: orchestrate.NewSupervisor(cfg, st, registry, metrics, searcher),
	}, nil
}

// SubmitJob starts a new job and returns its initial record.
func (e *Engine) SubmitJob(ctx context.Context, req JobRequest) (*Job, error) {
	return e.supervisor.Submit(ctx, req)
}

// GetJob returns the current job record.
func (e *Engine) GetJob(ctx context.Context, id string) (*Job, error) {
	return e.store.GetJob(ctx, id)
}

// GetResults returns every persisted result for a job.
func (e *Engine) GetResults(ctx context.Context, jobID string) ([]Result, error) {
	if _, err := e.store.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return e.store.GetResults(ctx, jobID)
}

// ListJobs returns the most recent jobs, newest first.
func (e *Engine) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	return e.store.ListJobs(ctx, limit)
}

// CancelJob requests cooperative cancellation. True means the request took
// effect; false means the job was already terminal.
func (e *Engine) CancelJob(ctx context.Context, id string) (bool, error) {
	return e.supervisor.Cancel(ctx, id)
}

// Stats aggregates job counts for the dashboard endpoint.
func (e *Engine) Stats(ctx context.Context) (*JobStats, error) {
	return e.store.Stats(ctx)
}

// ListAdapters returns summaries of every registered adapter.
func (e *Engine) ListAdapters() ([]AdapterSummary, error) {
	return e.registry.List()
}

// GetAdapter returns one adapter by exact name.
func (e *Engine) GetAdapter(name string) (*Adapter, error) {
	return e.registry.GetStrict(name)
}

// SaveAdapter creates or replaces an adapter definition.
func (e *Engine) SaveAdapter(name string, a *Adapter) error {
	return e.registry.Save(name, a)
}

// DeleteAdapter removes an adapter. The builtin default cannot be deleted.
func (e *Engine) DeleteAdapter(name string) bool {
	return e.registry.Delete(name)
}

// Metrics exposes the prometheus registry handler owner.
func (e *Engine) Metrics() *monitoring.Metrics {
	return e.metrics
}

// Close waits for running jobs and releases the store.
func (e *Engine) Close() error {
	e.supervisor.Wait()
	return e.store.Close()
}

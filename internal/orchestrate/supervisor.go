// internal/orchestrate/supervisor.go
package orchestrate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harvex/leadharvest/internal/adapter"
	"github.com/harvex/leadharvest/internal/config"
	"github.com/harvex/leadharvest/internal/monitoring"
	"github.com/harvex/leadharvest/internal/search"
	"github.com/harvex/leadharvest/internal/store"
	"github.com/harvex/leadharvest/internal/utils"
	"github.com/harvex/leadharvest/pkg/types"
)

var supervisorLogger = utils.NewComponentLogger("supervisor")

// JobRequest is a submission for a new job. Either URLs or Query must be
// set; when URLs is empty the query is run through the search provider and
// the hits become the batch.
type JobRequest struct {
	TaskType    types.TaskType
	AdapterName string
	URLs        []string
	Query       string
	MaxResults  int
}

// Supervisor owns the lifecycle of every job: it creates the record,
// spawns one worker goroutine per job, applies progress updates and drives
// the terminal transition. A cancellation flag per running job is checked
// between URLs, so cancelling never interrupts an in-flight fetch.
type Supervisor struct {
	cfg      *config.Config
	store    store.JobStore
	registry *adapter.Registry
	metrics  *monitoring.Metrics
	searcher search.Provider

	// newRunner is swappable in tests.
	newRunner func() *Runner

	mu      sync.Mutex
	flags   map[string]*atomic.Bool
	workers sync.WaitGroup
}

// NewSupervisor wires a supervisor. The search provider may be nil, in
// which case query-only submissions are rejected.
func NewSupervisor(cfg *config.Config, st store.JobStore, reg *adapter.Registry, metrics *monitoring.Metrics, searcher search.Provider) *Supervisor {
	s := &Supervisor{
		cfg:      cfg,
		store:    st,
		registry: reg,
		metrics:  metrics,
		searcher: searcher,
		flags:    make(map[string]*atomic.Bool),
	}
	s.newRunner = func() *Runner { return NewRunner(cfg, metrics) }
	return s
}

// Submit validates the request, resolves the adapter, persists a pending
// job record and starts its worker goroutine. Validation and adapter
// resolution failures surface here; everything after submission is
// reported through the job record instead.
func (s *Supervisor) Submit(ctx context.Context, req JobRequest) (*types.Job, error) {
	if len(req.URLs) == 0 && req.Query == "" {
		return nil, utils.NewError(utils.ErrCodeInvalidConfig, "job needs at least one URL or a search query")
	}
	if len(req.URLs) == 0 && s.searcher == nil {
		return nil, utils.NewError(utils.ErrCodeInvalidConfig, "no search provider configured for query-only jobs")
	}
	if req.TaskType == "" {
		req.TaskType = types.TaskGeneral
	}

	a, err := s.registry.Get(req.AdapterName)
	if err != nil {
		return nil, err
	}

	job := &types.Job{
		TaskType:    req.TaskType,
		AdapterName: a.Name,
		Query:       req.Query,
		URLs:        req.URLs,
		Status:      types.StatusPending,
		TotalURLs:   len(req.URLs),
	}
	id, err := s.store.CreateJob(ctx, job)
	if err != nil {
		return nil, err
	}
	job.ID = id

	flag := &atomic.Bool{}
	s.mu.Lock()
	s.flags[id] = flag
	s.mu.Unlock()

	s.workers.Add(1)
	go s.run(job, a, req, flag)

	supervisorLogger.WithFields(map[string]interface{}{
		"job_id":  id,
		"adapter": a.Name,
		"task":    string(req.TaskType),
	}).Info("job submitted")
	return job, nil
}

// Cancel requests cooperative cancellation. It reports true when the
// request took effect: the job was running (flag raised) or still pending
// in the store. Terminal jobs return false; unknown IDs return an error.
func (s *Supervisor) Cancel(ctx context.Context, id string) (bool, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return false, err
	}
	if job.Status.Terminal() {
		return false, nil
	}

	s.mu.Lock()
	flag, ok := s.flags[id]
	s.mu.Unlock()
	if ok {
		flag.Store(true)
		supervisorLogger.WithField("job_id", id).Info("cancellation requested")
		return true, nil
	}

	// No live worker (for instance a record left over from a previous
	// process). Transition directly. The store refuses the write when the
	// job reached a terminal state after the read above.
	now := time.Now()
	err = s.store.UpdateJob(ctx, id, store.JobUpdate{
		Status:      store.StatusPtr(types.StatusCancelled),
		CompletedAt: store.TimePtr(now),
	})
	if utils.CodeOf(err) == utils.ErrCodeAlreadyTerminal {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.countJob(types.StatusCancelled)
	return true, nil
}

// Wait blocks until every worker goroutine has exited. Used on shutdown.
func (s *Supervisor) Wait() {
	s.workers.Wait()
}

// run is the per-job worker. It performs search resolution when needed,
// drives the batch and applies the terminal transition. Exactly one
// terminal update happens per job.
func (s *Supervisor) run(job *types.Job, a *types.Adapter, req JobRequest, flag *atomic.Bool) {
	defer s.workers.Done()
	defer s.forget(job.ID)

	if s.metrics != nil {
		s.metrics.JobsActive.Inc()
		defer s.metrics.JobsActive.Dec()
	}

	ctx := context.Background()
	started := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			supervisorLogger.WithField("job_id", job.ID).Errorf("worker panic: %v", rec)
			s.fail(ctx, job.ID, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	urls := job.URLs
	if len(urls) == 0 {
		found, err := s.resolveQuery(ctx, req)
		if err != nil {
			s.fail(ctx, job.ID, err.Error())
			return
		}
		urls = found
	}

	err := s.store.UpdateJob(ctx, job.ID, store.JobUpdate{
		Status:    store.StatusPtr(types.StatusRunning),
		TotalURLs: store.IntPtr(len(urls)),
		URLs:      urls,
		StartedAt: store.TimePtr(started),
	})
	if err != nil {
		supervisorLogger.WithField("job_id", job.ID).Errorf("cannot mark running: %v", err)
		// Leave a terminal record rather than a job stuck at pending.
		s.fail(ctx, job.ID, fmt.Sprintf("could not start job: %v", err))
		return
	}

	runner := s.newRunner()
	runner.Run(ctx, urls, a, job.TaskType, flag.Load, func(o Outcome, p Progress) {
		if o.Err == nil {
			s.saveResult(ctx, job, o)
		}
		update := store.JobUpdate{
			ProgressPercent: store.IntPtr(p.Percent),
			CompletedURLs:   store.IntPtr(p.Completed),
			FailedURLs:      store.IntPtr(p.Failed),
			ResultsCount:    store.IntPtr(p.Successful),
		}
		if err := s.store.UpdateJob(ctx, job.ID, update); err != nil {
			supervisorLogger.WithField("job_id", job.ID).Warnf("progress update failed: %v", err)
		}
	})

	final := types.StatusCompleted
	update := store.JobUpdate{
		Status:      store.StatusPtr(final),
		CompletedAt: store.TimePtr(time.Now()),
	}
	if flag.Load() {
		final = types.StatusCancelled
		update.Status = store.StatusPtr(final)
	} else {
		// Per-URL failures do not fail the job; completion still means
		// the batch ran to the end.
		update.ProgressPercent = store.IntPtr(100)
	}
	if err := s.store.UpdateJob(ctx, job.ID, update); err != nil {
		supervisorLogger.WithField("job_id", job.ID).Errorf("terminal update failed: %v", err)
		return
	}

	s.countJob(final)
	if s.metrics != nil {
		s.metrics.JobDuration.Observe(time.Since(started).Seconds())
	}
	supervisorLogger.WithFields(map[string]interface{}{
		"job_id":   job.ID,
		"status":   string(final),
		"duration": time.Since(started).Round(time.Millisecond).String(),
	}).Info("job finished")
}

// resolveQuery turns a search query into a URL batch.
func (s *Supervisor) resolveQuery(ctx context.Context, req JobRequest) ([]string, error) {
	max := req.MaxResults
	if max <= 0 {
		max = s.cfg.Search.MaxResults
	}
	hits, err := s.searcher.Search(ctx, req.Query, max)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("no search results for query %q", req.Query)
	}
	urls := make([]string, 0, len(hits))
	for _, h := range hits {
		urls = append(urls, h.URL)
	}
	return urls, nil
}

func (s *Supervisor) saveResult(ctx context.Context, job *types.Job, o Outcome) {
	result := &types.Result{
		JobID:      job.ID,
		URL:        o.URL,
		ResultType: job.TaskType,
		Data:       o.Data,
		ScrapedAt:  time.Now(),
	}
	if err := s.store.SaveResult(ctx, result); err != nil {
		supervisorLogger.WithFields(map[string]interface{}{
			"job_id": job.ID,
			"url":    o.URL,
		}).Errorf("result not persisted: %v", err)
	}
}

// fail applies the failed terminal transition with an operator-readable
// message.
func (s *Supervisor) fail(ctx context.Context, id, message string) {
	err := s.store.UpdateJob(ctx, id, store.JobUpdate{
		Status:       store.StatusPtr(types.StatusFailed),
		ErrorMessage: store.StringPtr(message),
		CompletedAt:  store.TimePtr(time.Now()),
	})
	if err != nil {
		supervisorLogger.WithField("job_id", id).Errorf("failed transition not persisted: %v", err)
	}
	s.countJob(types.StatusFailed)
}

func (s *Supervisor) forget(id string) {
	s.mu.Lock()
	delete(s.flags, id)
	s.mu.Unlock()
}

func (s *Supervisor) countJob(status types.JobStatus) {
	if s.metrics != nil {
		s.metrics.JobsTotal.WithLabelValues(string(status)).Inc()
	}
}

// internal/orchestrate/supervisor_test.go
package orchestrate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harvex/leadharvest/internal/adapter"
	"github.com/harvex/leadharvest/internal/search"
	"github.com/harvex/leadharvest/internal/store"
	"github.com/harvex/leadharvest/pkg/types"
)

func newTestSupervisor(t *testing.T, searcher search.Provider) (*Supervisor, store.JobStore) {
	t.Helper()
	return newTestSupervisorOn(t, store.NewMemoryStore(), searcher)
}

func newTestSupervisorOn(t *testing.T, st store.JobStore, searcher search.Provider) (*Supervisor, store.JobStore) {
	t.Helper()

	cfg := testConfig()
	cfg.AdapterDir = t.TempDir()

	reg, err := adapter.NewRegistry(cfg.AdapterDir)
	if err != nil {
		t.Fatalf("Failed to create registry: %v", err)
	}
	if err := reg.Save("plain", plainAdapter()); err != nil {
		t.Fatalf("Failed to save test adapter: %v", err)
	}

	return NewSupervisor(cfg, st, reg, nil, searcher), st
}

func waitTerminal(t *testing.T, st store.JobStore, id string) *types.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := st.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("GetJob failed: %v", err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Job never reached a terminal state")
	return nil
}

func TestJobCompletesDespitePartialFailures(t *testing.T) {
	server := contentServer(t)
	s, st := newTestSupervisor(t, nil)

	job, err := s.Submit(context.Background(), JobRequest{
		TaskType:    types.TaskGeneral,
		AdapterName: "plain",
		URLs: []string{
			server.URL + "/one",
			server.URL + "/missing",
			server.URL + "/two",
			server.URL + "/missing-too",
			server.URL + "/three",
		},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if job.Status != types.StatusPending {
		t.Errorf("Expected pending at submission, got %s", job.Status)
	}

	final := waitTerminal(t, st, job.ID)
	if final.Status != types.StatusCompleted {
		t.Fatalf("Per-URL failures must not fail the job, got %s (%s)", final.Status, final.ErrorMessage)
	}
	if final.CompletedURLs != 5 || final.FailedURLs != 2 || final.ResultsCount != 3 {
		t.Errorf("Unexpected counters: completed=%d failed=%d results=%d",
			final.CompletedURLs, final.FailedURLs, final.ResultsCount)
	}
	if final.ProgressPercent != 100 {
		t.Errorf("Expected 100%% progress, got %d", final.ProgressPercent)
	}
	if final.CompletedAt.IsZero() || final.StartedAt.IsZero() {
		t.Error("Lifecycle timestamps should be set")
	}

	results, err := st.GetResults(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetResults failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("Expected 3 persisted results, got %d", len(results))
	}
}

func TestCancelStopsBetweenURLs(t *testing.T) {
	firstServed := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case firstServed <- struct{}{}:
		default:
		}
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("<html><h1>slow</h1></html>"))
	}))
	t.Cleanup(server.Close)

	s, st := newTestSupervisor(t, nil)

	urls := make([]string, 20)
	for i := range urls {
		urls[i] = server.URL + "/p"
	}
	job, err := s.Submit(context.Background(), JobRequest{AdapterName: "plain", URLs: urls})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	<-firstServed
	cancelled, err := s.Cancel(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !cancelled {
		t.Fatal("Expected cancellation to take effect")
	}

	final := waitTerminal(t, st, job.ID)
	if final.Status != types.StatusCancelled {
		t.Fatalf("Expected cancelled, got %s", final.Status)
	}
	if final.CompletedURLs >= len(urls) {
		t.Errorf("Cancellation should stop the batch early, completed %d", final.CompletedURLs)
	}
}

func TestCancelTerminalJobReturnsFalse(t *testing.T) {
	server := contentServer(t)
	s, st := newTestSupervisor(t, nil)

	job, err := s.Submit(context.Background(), JobRequest{
		AdapterName: "plain",
		URLs:        []string{server.URL + "/only"},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitTerminal(t, st, job.ID)
	s.Wait()

	cancelled, err := s.Cancel(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled {
		t.Error("Cancelling a terminal job must report false")
	}
}

func TestCancelOrphanJobTransitionsDirectly(t *testing.T) {
	s, st := newTestSupervisor(t, nil)

	// A record without a live worker, as left behind by a previous process.
	id, err := st.CreateJob(context.Background(), &types.Job{
		AdapterName: "plain",
		URLs:        []string{"https://example.org"},
		Status:      types.StatusRunning,
		TotalURLs:   1,
	})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	cancelled, err := s.Cancel(context.Background(), id)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !cancelled {
		t.Fatal("Expected direct cancellation of an orphan record")
	}

	job, _ := st.GetJob(context.Background(), id)
	if job.Status != types.StatusCancelled {
		t.Errorf("Expected cancelled, got %s", job.Status)
	}
}

// staleJobReads serves job records as still running, modelling a reader
// that observed the record just before the worker committed completion.
type staleJobReads struct {
	store.JobStore
}

func (s *staleJobReads) GetJob(ctx context.Context, id string) (*types.Job, error) {
	job, err := s.JobStore.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Status = types.StatusRunning
	return job, nil
}

func TestCancelLosingRaceWithCompletionReportsFalse(t *testing.T) {
	backing := store.NewMemoryStore()
	s, _ := newTestSupervisorOn(t, &staleJobReads{JobStore: backing}, nil)

	id, err := backing.CreateJob(context.Background(), &types.Job{AdapterName: "plain", TotalURLs: 1})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	err = backing.UpdateJob(context.Background(), id, store.JobUpdate{
		Status:      store.StatusPtr(types.StatusCompleted),
		CompletedAt: store.TimePtr(time.Now()),
	})
	if err != nil {
		t.Fatalf("Terminal transition failed: %v", err)
	}

	// Cancel sees a stale running status, yet must not write over the
	// committed completed record.
	cancelled, err := s.Cancel(context.Background(), id)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled {
		t.Error("Cancel must report false when the job completed first")
	}

	job, _ := backing.GetJob(context.Background(), id)
	if job.Status != types.StatusCompleted {
		t.Errorf("Terminal status was mutated: completed -> %s", job.Status)
	}
}

// runningUpdateRefused fails any update that tries to mark a job running.
type runningUpdateRefused struct {
	store.JobStore
}

func (s *runningUpdateRefused) UpdateJob(ctx context.Context, id string, update store.JobUpdate) error {
	if update.Status != nil && *update.Status == types.StatusRunning {
		return errors.New("backend write refused")
	}
	return s.JobStore.UpdateJob(ctx, id, update)
}

func TestFailedStartLeavesTerminalRecord(t *testing.T) {
	server := contentServer(t)
	s, st := newTestSupervisorOn(t, &runningUpdateRefused{JobStore: store.NewMemoryStore()}, nil)

	job, err := s.Submit(context.Background(), JobRequest{
		AdapterName: "plain",
		URLs:        []string{server.URL + "/x"},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// The job must not stay pending forever when the running transition
	// cannot be persisted.
	final := waitTerminal(t, st, job.ID)
	if final.Status != types.StatusFailed {
		t.Fatalf("Expected failed, got %s", final.Status)
	}
	if !strings.Contains(final.ErrorMessage, "could not start") {
		t.Errorf("Expected start-failure message, got %q", final.ErrorMessage)
	}
}

func TestCancelUnknownJob(t *testing.T) {
	s, _ := newTestSupervisor(t, nil)

	if _, err := s.Cancel(context.Background(), "missing"); err == nil {
		t.Fatal("Expected error for unknown job id")
	}
}

func TestSubmitRequiresURLsOrQuery(t *testing.T) {
	s, _ := newTestSupervisor(t, nil)

	if _, err := s.Submit(context.Background(), JobRequest{AdapterName: "plain"}); err == nil {
		t.Fatal("Expected validation error")
	}
}

func TestSubmitUnknownAdapterFallsBack(t *testing.T) {
	server := contentServer(t)
	searcher := search.ProviderFunc(func(ctx context.Context, q string, n int) ([]types.SearchResult, error) {
		return nil, errors.New("unused")
	})
	s, st := newTestSupervisor(t, searcher)

	// The default adapter has dynamic fallback enabled, which the test
	// environment cannot run. Overwrite it with a static-only variant;
	// the fallback policy only concerns name resolution.
	staticDefault := plainAdapter()
	staticDefault.DisplayName = "Default"
	if err := s.registry.Save(adapter.ReservedName, staticDefault); err != nil {
		t.Fatalf("Failed to replace default adapter: %v", err)
	}

	job, err := s.Submit(context.Background(), JobRequest{
		AdapterName: "stale-name",
		URLs:        []string{server.URL + "/x"},
	})
	if err != nil {
		t.Fatalf("Unknown adapter should fall back to default: %v", err)
	}
	if job.AdapterName != adapter.ReservedName {
		t.Errorf("Job should record the resolved adapter, got %q", job.AdapterName)
	}

	final := waitTerminal(t, st, job.ID)
	if final.Status != types.StatusCompleted {
		t.Errorf("Expected completion, got %s", final.Status)
	}
}

func TestSearchJobResolvesURLs(t *testing.T) {
	server := contentServer(t)
	searcher := search.ProviderFunc(func(ctx context.Context, q string, n int) ([]types.SearchResult, error) {
		if q != "acme leads" {
			t.Errorf("Unexpected query: %q", q)
		}
		return []types.SearchResult{
			{Title: "One", URL: server.URL + "/r1"},
			{Title: "Two", URL: server.URL + "/r2"},
		}, nil
	})
	s, st := newTestSupervisor(t, searcher)

	job, err := s.Submit(context.Background(), JobRequest{
		TaskType:    types.TaskLead,
		AdapterName: "plain",
		Query:       "acme leads",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	final := waitTerminal(t, st, job.ID)
	if final.Status != types.StatusCompleted {
		t.Fatalf("Expected completion, got %s (%s)", final.Status, final.ErrorMessage)
	}
	if final.TotalURLs != 2 || final.ResultsCount != 2 {
		t.Errorf("Expected 2 discovered URLs with results, got total=%d results=%d",
			final.TotalURLs, final.ResultsCount)
	}
	if len(final.URLs) != 2 || !strings.HasPrefix(final.URLs[0], server.URL) {
		t.Errorf("Discovered URLs should be persisted on the job: %v", final.URLs)
	}
}

func TestSearchFailureMarksJobFailed(t *testing.T) {
	searcher := search.ProviderFunc(func(ctx context.Context, q string, n int) ([]types.SearchResult, error) {
		return nil, errors.New("provider unavailable")
	})
	s, st := newTestSupervisor(t, searcher)

	job, err := s.Submit(context.Background(), JobRequest{
		AdapterName: "plain",
		Query:       "anything",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	final := waitTerminal(t, st, job.ID)
	if final.Status != types.StatusFailed {
		t.Fatalf("Expected failed, got %s", final.Status)
	}
	if !strings.Contains(final.ErrorMessage, "search failed") {
		t.Errorf("Expected search failure message, got %q", final.ErrorMessage)
	}
}

func TestEmptySearchResultsMarksJobFailed(t *testing.T) {
	searcher := search.ProviderFunc(func(ctx context.Context, q string, n int) ([]types.SearchResult, error) {
		return nil, nil
	})
	s, st := newTestSupervisor(t, searcher)

	job, err := s.Submit(context.Background(), JobRequest{
		AdapterName: "plain",
		Query:       "nothing matches this",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	final := waitTerminal(t, st, job.ID)
	if final.Status != types.StatusFailed {
		t.Fatalf("Expected failed, got %s", final.Status)
	}
	if !strings.Contains(final.ErrorMessage, "no search results") {
		t.Errorf("Expected empty-results message, got %q", final.ErrorMessage)
	}
}

func TestQueryOnlySubmissionWithoutProviderRejected(t *testing.T) {
	s, _ := newTestSupervisor(t, nil)

	if _, err := s.Submit(context.Background(), JobRequest{AdapterName: "plain", Query: "x"}); err == nil {
		t.Fatal("Expected rejection when no search provider is configured")
	}
}

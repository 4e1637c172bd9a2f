// internal/fetch/fetcher.go
package fetch

import (
	"context"
	"strings"
	"time"

	"github.com/harvex/leadharvest/internal/config"
	"github.com/harvex/leadharvest/internal/monitoring"
	"github.com/harvex/leadharvest/internal/utils"
	"github.com/harvex/leadharvest/pkg/types"
)

var fetcherLogger = utils.NewComponentLogger("fetcher")

// Policy tells the fetcher how to retrieve a URL.
type Policy struct {
	// FallbackToDynamic escalates to a browser-rendered fetch when the
	// static fetch fails or returns empty content.
	FallbackToDynamic bool
	// ForceDynamic skips the static attempt entirely.
	ForceDynamic bool
}

// PolicyFor derives the fetch policy from an adapter's flags.
func PolicyFor(a *types.Adapter) Policy {
	return Policy{FallbackToDynamic: a.FallbackToDynamic}
}

// Fetcher combines the static and dynamic fetch paths with the escalation
// policy between them. Each job owns its own Fetcher; no fetch state is
// shared across jobs.
type Fetcher struct {
	static  *StaticClient
	dynamic *DynamicFetcher
	metrics *monitoring.Metrics
}

// New creates a Fetcher from engine configuration.
func New(cfg *config.Config, metrics *monitoring.Metrics) *Fetcher {
	return &Fetcher{
		static:  NewStaticClient(cfg.Fetch),
		dynamic: NewDynamicFetcher(cfg.Browser),
		metrics: metrics,
	}
}

// FetchStatic retrieves a URL over plain HTTP.
func (f *Fetcher) FetchStatic(ctx context.Context, url string) (*types.FetchResult, error) {
	started := time.Now()
	res, err := f.static.Fetch(ctx, url)
	f.record(types.FetchStatic, started, err)
	return res, err
}

// FetchDynamic retrieves a URL through the headless browser.
func (f *Fetcher) FetchDynamic(ctx context.Context, url string) (*types.FetchResult, error) {
	started := time.Now()
	res, err := f.dynamic.Fetch(ctx, url)
	f.record(types.FetchDynamic, started, err)
	return res, err
}

// Fetch retrieves a URL according to policy: static first, then a single
// dynamic attempt when the policy allows it and the static path failed or
// produced empty content. A dynamic failure is terminal for the URL.
func (f *Fetcher) Fetch(ctx context.Context, url string, policy Policy) (*types.FetchResult, error) {
	if policy.ForceDynamic {
		return f.FetchDynamic(ctx, url)
	}

	res, err := f.FetchStatic(ctx, url)
	if err == nil && strings.TrimSpace(res.Content) != "" {
		return res, nil
	}

	if !policy.FallbackToDynamic {
		if err != nil {
			return nil, err
		}
		return nil, utils.NewErrorf(utils.ErrCodeFetchFailed, "static fetch of %s returned empty content", url)
	}

	// Malformed URLs will not improve in a browser.
	if utils.CodeOf(err) == utils.ErrCodeInvalidURL {
		return nil, err
	}

	fetcherLogger.Infof("falling back to dynamic fetch for %s", url)
	dynRes, dynErr := f.FetchDynamic(ctx, url)
	if dynErr != nil {
		return nil, utils.WrapError(dynErr, utils.ErrCodeFetchFailed,
			"both static and dynamic fetch failed for "+url)
	}
	return dynRes, nil
}

// Close releases fetcher resources.
func (f *Fetcher) Close() error {
	return f.static.Close()
}

func (f *Fetcher) record(method types.FetchMethod, started time.Time, err error) {
	if f.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	f.metrics.FetchesTotal.WithLabelValues(string(method), outcome).Inc()
	f.metrics.FetchDuration.WithLabelValues(string(method)).Observe(time.Since(started).Seconds())
}

// internal/orchestrate/runner.go

// Package orchestrate drives batches of URLs through the fetch/extract
// pipeline and owns the job lifecycle state machine.
package orchestrate

import (
	"context"
	"math/rand"
	"time"

	"github.com/harvex/leadharvest/internal/config"
	"github.com/harvex/leadharvest/internal/contact"
	"github.com/harvex/leadharvest/internal/extract"
	"github.com/harvex/leadharvest/internal/fetch"
	"github.com/harvex/leadharvest/internal/monitoring"
	"github.com/harvex/leadharvest/internal/utils"
	"github.com/harvex/leadharvest/pkg/types"
)

var runnerLogger = utils.NewComponentLogger("batch-runner")

// Outcome is the per-URL result of a batch run. Err is set when the URL
// failed; Data is the persisted payload otherwise.
type Outcome struct {
	URL  string
	Data map[string]interface{}
	Err  error
}

// Progress is the batch position after one URL has been processed.
// Percent is floor(100 * Completed / total).
type Progress struct {
	Percent    int
	Completed  int
	Successful int
	Failed     int
}

// SinkFunc receives every outcome together with the updated progress,
// immediately after the URL finishes.
type SinkFunc func(Outcome, Progress)

// Runner processes one batch of URLs sequentially. Each job gets its own
// Runner (and its own fetcher state); parallelism happens across jobs,
// never within one.
type Runner struct {
	fetcher   *fetch.Fetcher
	extractor *extract.Extractor
	contacts  *contact.Extractor
	metrics   *monitoring.Metrics

	rateDelay  time.Duration
	rateJitter time.Duration
}

// NewRunner builds a runner with its own isolated fetcher.
func NewRunner(cfg *config.Config, metrics *monitoring.Metrics) *Runner {
	return &Runner{
		fetcher:    fetch.New(cfg, metrics),
		extractor:  extract.New(metrics),
		contacts:   contact.New(),
		metrics:    metrics,
		rateDelay:  cfg.Batch.RateLimitDelay,
		rateJitter: cfg.Batch.RateLimitJitter,
	}
}

// Run drives every URL through fetch + extract (+ contact augmentation for
// lead and job tasks). URL processing is strictly sequential; a rate-limit
// delay with jitter applies before all but the first request. Per-URL
// failures are reported through the sink and the batch continues. The stop
// check is consulted only between URLs: cancellation is cooperative and
// never interrupts an in-flight fetch. Returns the number of URLs that
// were actually processed.
func (r *Runner) Run(ctx context.Context, urls []string, a *types.Adapter, taskType types.TaskType, stop func() bool, sink SinkFunc) int {
	defer r.fetcher.Close()

	total := len(urls)
	successful := 0
	processed := 0

	for i, url := range urls {
		if stop != nil && stop() {
			runnerLogger.Infof("batch stopped after %d/%d URLs", i, total)
			break
		}
		if i > 0 {
			r.pause(ctx)
		}

		runnerLogger.Infof("scraping %d/%d: %s", i+1, total, url)
		outcome := r.processURL(ctx, url, a, taskType)
		processed++

		if outcome.Err == nil {
			successful++
			r.countURL("success")
		} else {
			runnerLogger.WithField("url", url).Warnf("failed: %v", outcome.Err)
			r.countURL("failure")
		}

		if sink != nil {
			sink(outcome, Progress{
				Percent:    100 * processed / total,
				Completed:  processed,
				Successful: successful,
				Failed:     processed - successful,
			})
		}
	}

	return processed
}

// processURL runs the full pipeline for one URL. All failures are returned
// as the outcome's error; nothing may escape and abort the batch.
func (r *Runner) processURL(ctx context.Context, url string, a *types.Adapter, taskType types.TaskType) (outcome Outcome) {
	outcome.URL = url

	defer func() {
		if rec := recover(); rec != nil {
			outcome.Err = utils.NewErrorf(utils.ErrCodeInternal, "panic processing %s: %v", url, rec)
		}
	}()

	page, err := r.fetcher.Fetch(ctx, url, fetch.PolicyFor(a))
	if err != nil {
		outcome.Err = err
		return outcome
	}

	doc, err := extract.Parse(page.Content, url)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	extraction := r.extractor.Run(doc, a, url)
	data := map[string]interface{}{
		"url":          url,
		"fetch_method": string(page.Method),
		"fields":       extraction.Fields,
	}
	if len(extraction.Links) > 0 {
		data["links"] = extraction.Links
	}
	if extraction.TextContent != "" {
		data["text_content"] = extraction.TextContent
	}

	switch taskType {
	case types.TaskLead:
		bundle := r.contacts.ExtractFromHTML(page.Content)
		data["contacts"] = bundle
		data["lead_score"] = bundle.LeadScore
	case types.TaskJob:
		details := r.contacts.ExtractJobDetails(page.Content)
		data["salary_ranges"] = details.SalaryRanges
		data["locations"] = details.Locations
		data["companies"] = details.Companies
		data["contacts"] = details.Contacts
	}

	outcome.Data = data
	return outcome
}

// pause applies the inter-request rate limit: base delay plus uniform
// jitter. Returns early on context cancellation.
func (r *Runner) pause(ctx context.Context) {
	delay := r.rateDelay
	if r.rateJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(r.rateJitter)))
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

func (r *Runner) countURL(outcome string) {
	if r.metrics != nil {
		r.metrics.URLsProcessed.WithLabelValues(outcome).Inc()
	}
}

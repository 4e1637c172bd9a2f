// internal/fetch/browser.go
package fetch

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/harvex/leadharvest/internal/config"
	"github.com/harvex/leadharvest/internal/utils"
	"github.com/harvex/leadharvest/pkg/types"
)

var browserLogger = utils.NewComponentLogger("dynamic-fetch")

// browserSession is one headless-browser page load. Close must release all
// browser resources and must be safe to call exactly once on every exit
// path; headless Chrome processes leak otherwise.
type browserSession interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	Close()
}

// sessionFactory opens a fresh, isolated browser session. Each fetch call
// gets its own session; no browser state is shared between fetches.
type sessionFactory func(cfg config.BrowserConfig) (browserSession, error)

// DynamicFetcher retrieves pages through a headless browser so client-side
// rendering runs before content capture.
type DynamicFetcher struct {
	cfg        config.BrowserConfig
	newSession sessionFactory
}

// NewDynamicFetcher creates a chromedp-backed dynamic fetcher.
func NewDynamicFetcher(cfg config.BrowserConfig) *DynamicFetcher {
	if cfg.NavigationTimeout == 0 {
		cfg.NavigationTimeout = 60 * time.Second
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = 3 * time.Second
	}
	return &DynamicFetcher{
		cfg:        cfg,
		newSession: newChromeSession,
	}
}

// Fetch navigates to the URL in a fresh browser session, waits for the page
// to settle, and captures the rendered DOM. The session is torn down on
// every exit path.
func (f *DynamicFetcher) Fetch(ctx context.Context, targetURL string) (*types.FetchResult, error) {
	start := time.Now()

	sess, err := f.newSession(f.cfg)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeFetchFailed, "failed to start browser session")
	}
	defer sess.Close()

	navCtx, cancel := context.WithTimeout(ctx, f.cfg.NavigationTimeout)
	defer cancel()

	if err := sess.Navigate(navCtx, targetURL); err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeFetchFailed,
			"browser navigation failed for "+targetURL)
	}

	// Let client-side rendering finish after network idle.
	select {
	case <-ctx.Done():
		return nil, utils.WrapError(ctx.Err(), utils.ErrCodeTimeout, "fetch cancelled during settle delay")
	case <-time.After(f.cfg.SettleDelay):
	}

	html, err := sess.HTML(navCtx)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeFetchFailed,
			"failed to capture rendered DOM for "+targetURL)
	}

	browserLogger.WithFields(map[string]interface{}{
		"url":      targetURL,
		"duration": time.Since(start),
	}).Debug("dynamic fetch complete")

	return &types.FetchResult{
		URL:      targetURL,
		Content:  html,
		Method:   types.FetchDynamic,
		Duration: time.Since(start),
	}, nil
}

// chromeSession implements browserSession using chromedp. Each session owns
// its own allocator and browser context.
type chromeSession struct {
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
}

func newChromeSession(cfg config.BrowserConfig) (browserSession, error) {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox, // Required for Docker environments
		chromedp.Headless,
	}
	if cfg.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx)

	sess := &chromeSession{
		ctx:         ctx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
	}

	width, height := cfg.ViewportWidth, cfg.ViewportHeight
	if width == 0 {
		width = 1920
	}
	if height == 0 {
		height = 1080
	}
	if err := chromedp.Run(ctx, chromedp.EmulateViewport(int64(width), int64(height))); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := mergeDeadline(s.ctx, ctx)
	defer cancel()

	return chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	)
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := mergeDeadline(s.ctx, ctx)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", err
	}
	return html, nil
}

// Close tears down the browser context and its allocator. Idempotent.
func (s *chromeSession) Close() {
	if s.cancelCtx != nil {
		s.cancelCtx()
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
	}
}

// mergeDeadline applies the caller's deadline to the session context.
func mergeDeadline(sessCtx, callCtx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := callCtx.Deadline(); ok {
		return context.WithDeadline(sessCtx, deadline)
	}
	return context.WithCancel(sessCtx)
}

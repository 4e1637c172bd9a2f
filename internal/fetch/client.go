// internal/fetch/client.go

// Package fetch retrieves raw page content for URLs, choosing between a
// lightweight HTTP fetch and a full browser-rendered fetch.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/harvex/leadharvest/internal/config"
	"github.com/harvex/leadharvest/internal/utils"
	"github.com/harvex/leadharvest/pkg/types"
)

var clientLogger = utils.NewComponentLogger("static-fetch")

// defaultUserAgents is the rotation pool used when none is configured.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:89.0) Gecko/20100101 Firefox/89.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
}

// StaticClient performs plain HTTP GETs with user-agent rotation, rate
// limiting, and retry with exponential backoff on transient failures.
type StaticClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter

	userAgents []string
	uaIndex    int
	uaMu       sync.Mutex

	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
}

// NewStaticClient creates a static fetch client from fetch configuration.
func NewStaticClient(cfg config.FetchConfig) *StaticClient {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = 4 * time.Second
	}
	if cfg.RetryMaxDelay == 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1.0
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = 5
	}
	userAgents := cfg.UserAgents
	if len(userAgents) == 0 {
		userAgents = defaultUserAgents
	}

	return &StaticClient{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:        rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		userAgents:     userAgents,
		retryAttempts:  cfg.RetryAttempts,
		retryBaseDelay: cfg.RetryBaseDelay,
		retryMaxDelay:  cfg.RetryMaxDelay,
	}
}

// Fetch performs an HTTP GET with retry on transient failures. Retryable
// failures are timeouts, connection errors, 5xx and 429 responses; other
// 4xx responses and malformed URLs fail immediately.
func (c *StaticClient) Fetch(ctx context.Context, targetURL string) (*types.FetchResult, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, utils.NewErrorf(utils.ErrCodeInvalidURL, "malformed URL: %q", targetURL).WithCause(err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoffDelay(attempt)
			clientLogger.WithFields(map[string]interface{}{
				"url":     targetURL,
				"attempt": attempt,
				"delay":   delay,
			}).Debug("retrying static fetch")

			select {
			case <-ctx.Done():
				return nil, utils.WrapError(ctx.Err(), utils.ErrCodeTimeout, "fetch cancelled during backoff")
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, utils.WrapError(err, utils.ErrCodeTimeout, "rate limiter wait cancelled")
		}

		result, err := c.doRequest(ctx, targetURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !utils.IsRetryable(err) {
			return nil, err
		}
	}

	return nil, utils.WrapError(lastErr, utils.ErrCodeFetchFailed,
		fmt.Sprintf("static fetch failed after %d attempts", c.retryAttempts+1))
}

// doRequest performs a single GET attempt and classifies its failure mode.
func (c *StaticClient) doRequest(ctx context.Context, targetURL string) (*types.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeInvalidURL, "failed to create request")
	}

	req.Header.Set("User-Agent", c.nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err, targetURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, classifyStatusError(resp.StatusCode, targetURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeNetworkError, "failed to read response body")
	}

	return &types.FetchResult{
		URL:        targetURL,
		Content:    string(body),
		Method:     types.FetchStatic,
		StatusCode: resp.StatusCode,
		Duration:   time.Since(start),
	}, nil
}

// backoffDelay computes exponential backoff: base, 2*base, 4*base...,
// capped at the configured maximum.
func (c *StaticClient) backoffDelay(attempt int) time.Duration {
	delay := c.retryBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.retryMaxDelay {
			return c.retryMaxDelay
		}
	}
	if delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

// nextUserAgent returns the next user agent in rotation.
func (c *StaticClient) nextUserAgent() string {
	c.uaMu.Lock()
	defer c.uaMu.Unlock()

	ua := c.userAgents[c.uaIndex]
	c.uaIndex = (c.uaIndex + 1) % len(c.userAgents)
	return ua
}

// Close releases idle connections held by the client.
func (c *StaticClient) Close() error {
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}

// classifyTransportError maps transport-level failures onto the error
// taxonomy.
func classifyTransportError(err error, targetURL string) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return utils.NewErrorf(utils.ErrCodeTimeout, "request to %s timed out", targetURL).WithCause(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return utils.NewErrorf(utils.ErrCodeTimeout, "request to %s timed out", targetURL).WithCause(err)
	}
	if strings.Contains(err.Error(), "connection reset") {
		return utils.NewErrorf(utils.ErrCodeNetworkError, "connection reset fetching %s", targetURL).WithCause(err)
	}
	return utils.NewErrorf(utils.ErrCodeNetworkError, "network error fetching %s", targetURL).WithCause(err)
}

// classifyStatusError maps HTTP status codes onto the error taxonomy.
// 429 is treated as transient despite being a 4xx.
func classifyStatusError(status int, targetURL string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return utils.NewErrorf(utils.ErrCodeServerError, "rate limited (429) by %s", targetURL).
			WithContext("status", status)
	case status >= 500:
		return utils.NewErrorf(utils.ErrCodeServerError, "server error %d from %s", status, targetURL).
			WithContext("status", status)
	default:
		return utils.NewErrorf(utils.ErrCodeClientError, "client error %d from %s", status, targetURL).
			WithContext("status", status)
	}
}

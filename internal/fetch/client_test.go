// internal/fetch/client_test.go
package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harvex/leadharvest/internal/config"
	"github.com/harvex/leadharvest/internal/utils"
)

// fastFetchConfig keeps retry delays out of test runtime.
func fastFetchConfig() config.FetchConfig {
	return config.FetchConfig{
		RequestTimeout: 5 * time.Second,
		RetryAttempts:  3,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  5 * time.Millisecond,
		RateLimit:      1000,
		RateBurst:      1000,
	}
}

func TestStaticFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	client := NewStaticClient(fastFetchConfig())
	defer client.Close()

	result, err := client.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", result.StatusCode)
	}
	if result.Method != "static" {
		t.Errorf("Expected static method, got %s", result.Method)
	}
	if result.Content == "" {
		t.Error("Expected non-empty content")
	}
}

func TestStaticFetchRetriesServerErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	client := NewStaticClient(fastFetchConfig())
	defer client.Close()

	result, err := client.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected recovery after retries, got %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
	if result.Content != "recovered" {
		t.Errorf("Unexpected content: %q", result.Content)
	}
}

func TestStaticFetchGivesUpAfterRetryBudget(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewStaticClient(fastFetchConfig())
	defer client.Close()

	_, err := client.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	// Initial attempt plus three retries.
	if got := atomic.LoadInt32(&attempts); got != 4 {
		t.Errorf("Expected 4 attempts, got %d", got)
	}
	if utils.CodeOf(err) != utils.ErrCodeFetchFailed {
		t.Errorf("Expected FETCH_FAILED, got %s", utils.CodeOf(err))
	}
}

func TestStaticFetchDoesNotRetryClientErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewStaticClient(fastFetchConfig())
	defer client.Close()

	_, err := client.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error for 404")
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("Expected a single attempt for 404, got %d", got)
	}
	if utils.CodeOf(err) != utils.ErrCodeClientError {
		t.Errorf("Expected CLIENT_ERROR, got %s", utils.CodeOf(err))
	}
}

func TestStaticFetchRetries429(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewStaticClient(fastFetchConfig())
	defer client.Close()

	if _, err := client.Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("Expected 429 to be retried, got %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Errorf("Expected 2 attempts, got %d", got)
	}
}

func TestStaticFetchRejectsMalformedURL(t *testing.T) {
	client := NewStaticClient(fastFetchConfig())
	defer client.Close()

	for _, bad := range []string{"not a url", "example.com/no-scheme", "http://"} {
		_, err := client.Fetch(context.Background(), bad)
		if err == nil {
			t.Errorf("Expected error for %q", bad)
			continue
		}
		if utils.CodeOf(err) != utils.ErrCodeInvalidURL {
			t.Errorf("Expected INVALID_URL for %q, got %s", bad, utils.CodeOf(err))
		}
	}
}

func TestUserAgentRotation(t *testing.T) {
	var agents []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.Header.Get("User-Agent"))
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	cfg := fastFetchConfig()
	cfg.UserAgents = []string{"agent-one", "agent-two"}
	client := NewStaticClient(cfg)
	defer client.Close()

	for i := 0; i < 3; i++ {
		if _, err := client.Fetch(context.Background(), server.URL); err != nil {
			t.Fatalf("Fetch %d failed: %v", i, err)
		}
	}

	if len(agents) != 3 {
		t.Fatalf("Expected 3 requests, got %d", len(agents))
	}
	if agents[0] != "agent-one" || agents[1] != "agent-two" || agents[2] != "agent-one" {
		t.Errorf("Expected round-robin rotation, got %v", agents)
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	cfg := fastFetchConfig()
	cfg.RetryBaseDelay = 4 * time.Second
	cfg.RetryMaxDelay = 10 * time.Second
	client := NewStaticClient(cfg)
	defer client.Close()

	if d := client.backoffDelay(1); d != 4*time.Second {
		t.Errorf("Expected first delay 4s, got %v", d)
	}
	if d := client.backoffDelay(2); d != 8*time.Second {
		t.Errorf("Expected second delay 8s, got %v", d)
	}
	if d := client.backoffDelay(3); d != 10*time.Second {
		t.Errorf("Expected third delay capped at 10s, got %v", d)
	}
}

// internal/search/duckduckgo_test.go
package search

import (
	"context"
	"errors"
	"testing"

	"github.com/harvex/leadharvest/pkg/types"
)

type fakeFetcher struct {
	content string
	err     error
	lastURL string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*types.FetchResult, error) {
	f.lastURL = url
	if f.err != nil {
		return nil, f.err
	}
	return &types.FetchResult{URL: url, Content: f.content, Method: types.FetchStatic}, nil
}

const resultsPage = `<html><body>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Facme.example.com%2Fteam">Acme Team</a>
  <div class="result__snippet">Meet the Acme team.</div>
</div>
<div class="result">
  <a class="result__a" href="https://plain.example.org/page">Plain Result</a>
  <div class="result__snippet">A direct link.</div>
</div>
<div class="result">
  <a class="result__a" href="https://third.example.org/">Third</a>
</div>
</body></html>`

func TestSearchParsesResults(t *testing.T) {
	f := &fakeFetcher{content: resultsPage}
	d := NewDuckDuckGo(f)

	results, err := d.Search(context.Background(), "acme team", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	first := results[0]
	if first.Title != "Acme Team" {
		t.Errorf("Unexpected title: %q", first.Title)
	}
	if first.URL != "https://acme.example.com/team" {
		t.Errorf("Redirect link should be unwrapped, got %q", first.URL)
	}
	if first.Description != "Meet the Acme team." {
		t.Errorf("Unexpected snippet: %q", first.Description)
	}

	if results[1].URL != "https://plain.example.org/page" {
		t.Errorf("Direct link should pass through, got %q", results[1].URL)
	}
}

func TestSearchHonorsMaxResults(t *testing.T) {
	f := &fakeFetcher{content: resultsPage}
	d := NewDuckDuckGo(f)

	results, err := d.Search(context.Background(), "acme", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected cap at 2 results, got %d", len(results))
	}
}

func TestSearchEncodesQuery(t *testing.T) {
	f := &fakeFetcher{content: "<html></html>"}
	d := NewDuckDuckGo(f)

	if _, err := d.Search(context.Background(), "a&b c", 5); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if f.lastURL != "https://html.duckduckgo.com/html/?q=a%26b+c" {
		t.Errorf("Query not encoded: %q", f.lastURL)
	}
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	d := NewDuckDuckGo(&fakeFetcher{})

	if _, err := d.Search(context.Background(), "   ", 5); err == nil {
		t.Fatal("Expected error for empty query")
	}
}

func TestSearchFetchFailure(t *testing.T) {
	d := NewDuckDuckGo(&fakeFetcher{err: errors.New("blocked")})

	if _, err := d.Search(context.Background(), "acme", 5); err == nil {
		t.Fatal("Expected fetch error to propagate")
	}
}

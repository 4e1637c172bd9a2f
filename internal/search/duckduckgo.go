// internal/search/duckduckgo.go
package search

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/harvex/leadharvest/internal/utils"
	"github.com/harvex/leadharvest/pkg/types"
)

var logger = utils.NewComponentLogger("duckduckgo")

const duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

// PageFetcher is the subset of the fetch client the provider needs.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*types.FetchResult, error)
}

// DuckDuckGo searches the DuckDuckGo HTML endpoint, which serves
// server-rendered results and needs no API key.
type DuckDuckGo struct {
	fetcher PageFetcher
}

// NewDuckDuckGo creates the provider on top of a static fetch client.
func NewDuckDuckGo(fetcher PageFetcher) *DuckDuckGo {
	return &DuckDuckGo{fetcher: fetcher}
}

// Search runs the query and parses result titles, URLs, and snippets.
func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]types.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, utils.NewError(utils.ErrCodeInvalidConfig, "search query cannot be empty")
	}
	if maxResults <= 0 {
		maxResults = 20
	}

	searchURL := duckDuckGoEndpoint + "?q=" + url.QueryEscape(query)
	page, err := d.fetcher.Fetch(ctx, searchURL)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeFetchFailed, "search request failed")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Content))
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeMalformedDocument, "failed to parse search results")
	}

	var results []types.SearchResult
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find(".result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}

		results = append(results, types.SearchResult{
			Title:       strings.TrimSpace(link.Text()),
			URL:         cleanResultURL(href),
			Description: strings.TrimSpace(s.Find(".result__snippet").Text()),
		})
		return len(results) < maxResults
	})

	logger.Infof("search %q returned %d results", query, len(results))
	return results, nil
}

// cleanResultURL unwraps DuckDuckGo's redirect links (/l/?uddg=<target>).
func cleanResultURL(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		if decoded, err := url.QueryUnescape(target); err == nil {
			return decoded
		}
		return target
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "https"
		return parsed.String()
	}
	return href
}

// internal/search/search.go

// Package search turns keyword queries into URL lists through an external
// search provider.
package search

import (
	"context"

	"github.com/harvex/leadharvest/pkg/types"
)

// Provider resolves a keyword query into search hits. Implementations are
// external collaborators; the engine only needs this contract.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) ([]types.SearchResult, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, query string, maxResults int) ([]types.SearchResult, error)

// Search implements Provider.
func (f ProviderFunc) Search(ctx context.Context, query string, maxResults int) ([]types.SearchResult, error) {
	return f(ctx, query, maxResults)
}

// Package keywords discovers the search terms a site should rank for by
// combining Google Custom Search results with LLM extraction.
package keywords

import (
	"context"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// SearchResult is one web search hit reduced to the fields the extraction
// prompt consumes.
type SearchResult struct {
	Title   string
	Link    string
	Snippet string
}

// Searcher runs web search queries.
type Searcher interface {
	Search(ctx context.Context, query string, num int) ([]SearchResult, error)
}

// CSESearcher implements Searcher on the Google Custom Search API.
type CSESearcher struct {
	svc *customsearch.Service
	cx  string
}

// NewCSESearcher creates a searcher bound to one programmable search engine
func NewCSESearcher(ctx context.Context, apiKey, cx string) (*CSESearcher, error) {
	svc, err := customsearch.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	return &CSESearcher{svc: svc, cx: cx}, nil
}

// Search returns up to num results for the query
func (s *CSESearcher) Search(ctx context.Context, query string, num int) ([]SearchResult, error) {
	resp, err := s.svc.Cse.List().Cx(s.cx).Q(query).Num(int64(num)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		results = append(results, SearchResult{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
		})
	}
	return results, nil
}

// Package crawl - provider.go defines the crawl provider boundary and its
// HTTP implementation.
package crawl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/site-auditor/internal/types"
)

// Crawl job states reported by the provider.
const (
	CrawlScraping  = "scraping"
	CrawlCompleted = "completed"
	CrawlFailed    = "failed"
)

// CrawlStatus is a snapshot of a provider-side crawl job.
type CrawlStatus struct {
	Status string
	Pages  []types.Page
}

// Done reports whether the provider finished, successfully or not.
func (s *CrawlStatus) Done() bool {
	return s.Status == CrawlCompleted || s.Status == CrawlFailed
}

// Provider is the external crawl service boundary. ScrapeOne returns a nil
// page without error when the provider cannot scrape the URL, so callers
// can fall back to a plain fetch.
type Provider interface {
	StartCrawl(ctx context.Context, url string, limit int) (string, error)
	PollCrawl(ctx context.Context, id string) (*CrawlStatus, error)
	ScrapeOne(ctx context.Context, url string) (*types.Page, error)
}

// HTTPProvider talks to a Firecrawl-style REST API.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPProvider creates a provider client for the given API base URL.
func NewHTTPProvider(baseURL, apiKey string, logger *zap.Logger) *HTTPProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

type crawlRequest struct {
	URL           string        `json:"url"`
	Limit         int           `json:"limit"`
	ScrapeOptions scrapeOptions `json:"scrapeOptions"`
}

type scrapeOptions struct {
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type crawlStartResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Error   string `json:"error"`
}

type crawlStatusResponse struct {
	Status    string          `json:"status"`
	Completed int             `json:"completed"`
	Total     int             `json:"total"`
	Data      []scrapedRecord `json:"data"`
}

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type scrapeResponse struct {
	Success bool          `json:"success"`
	Data    scrapedRecord `json:"data"`
	Error   string        `json:"error"`
}

type scrapedRecord struct {
	Markdown string `json:"markdown"`
	Metadata struct {
		SourceURL  string `json:"sourceURL"`
		Title      string `json:"title"`
		StatusCode int    `json:"statusCode"`
	} `json:"metadata"`
}

// StartCrawl launches a provider-side crawl and returns its job id.
func (p *HTTPProvider) StartCrawl(ctx context.Context, url string, limit int) (string, error) {
	body := crawlRequest{
		URL:   url,
		Limit: limit,
		ScrapeOptions: scrapeOptions{
			Formats:         []string{"markdown"},
			OnlyMainContent: false,
		},
	}

	var resp crawlStartResponse
	if err := p.post(ctx, "/v1/crawl", body, &resp); err != nil {
		return "", &ProviderError{Operation: "start", Message: "request failed", Cause: err}
	}
	if !resp.Success || resp.ID == "" {
		return "", &ProviderError{Operation: "start", Message: fmt.Sprintf("provider rejected crawl: %s", resp.Error)}
	}
	return resp.ID, nil
}

// PollCrawl returns the current state of a crawl, including any pages
// scraped so far.
func (p *HTTPProvider) PollCrawl(ctx context.Context, id string) (*CrawlStatus, error) {
	var resp crawlStatusResponse
	if err := p.get(ctx, "/v1/crawl/"+id, &resp); err != nil {
		return nil, &ProviderError{Operation: "poll", Message: "request failed", Cause: err}
	}

	status := &CrawlStatus{Status: resp.Status}
	for _, record := range resp.Data {
		if page := recordToPage(record); page != nil {
			status.Pages = append(status.Pages, *page)
		}
	}
	return status, nil
}

// ScrapeOne scrapes a single URL. A nil page with nil error means the
// provider could not scrape it and the caller should fall back.
func (p *HTTPProvider) ScrapeOne(ctx context.Context, url string) (*types.Page, error) {
	body := scrapeRequest{URL: url, Formats: []string{"markdown"}}

	var resp scrapeResponse
	err := p.post(ctx, "/v1/scrape", body, &resp)
	if err != nil {
		var httpErr *httpStatusError
		// Unscrapeable targets come back as client errors, not failures.
		if errors.As(err, &httpErr) && httpErr.code >= 400 && httpErr.code < 500 {
			p.logger.Debug("provider cannot scrape url", zap.String("url", url), zap.Int("status", httpErr.code))
			return nil, nil
		}
		return nil, &ProviderError{Operation: "scrape", Message: "request failed", Cause: err}
	}
	if !resp.Success {
		return nil, nil
	}
	return recordToPage(resp.Data), nil
}

func recordToPage(record scrapedRecord) *types.Page {
	if record.Metadata.StatusCode >= 400 {
		return nil
	}
	content := strings.TrimSpace(record.Markdown)
	if content == "" {
		return nil
	}
	return &types.Page{
		URL:     record.Metadata.SourceURL,
		Title:   record.Metadata.Title,
		Content: content,
	}
}

type httpStatusError struct {
	code int
	body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("HTTP status %d: %s", e.code, e.body)
}

func (p *HTTPProvider) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return p.do(req, out)
}

func (p *HTTPProvider) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return p.do(req, out)
}

func (p *HTTPProvider) do(req *http.Request, out any) error {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &httpStatusError{code: resp.StatusCode, body: truncateBody(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncateBody(raw []byte) string {
	const max = 200
	s := string(raw)
	if len(s) > max {
		return s[:max]
	}
	return s
}

package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/site-auditor/internal/fetch"
	"github.com/jonathan/site-auditor/internal/types"
)

type fakeProvider struct {
	startFunc  func(ctx context.Context, url string, limit int) (string, error)
	pollFunc   func(ctx context.Context, id string) (*CrawlStatus, error)
	scrapeFunc func(ctx context.Context, url string) (*types.Page, error)
}

func (f *fakeProvider) StartCrawl(ctx context.Context, url string, limit int) (string, error) {
	if f.startFunc != nil {
		return f.startFunc(ctx, url, limit)
	}
	return "crawl-1", nil
}

func (f *fakeProvider) PollCrawl(ctx context.Context, id string) (*CrawlStatus, error) {
	if f.pollFunc != nil {
		return f.pollFunc(ctx, id)
	}
	return &CrawlStatus{Status: CrawlCompleted}, nil
}

func (f *fakeProvider) ScrapeOne(ctx context.Context, url string) (*types.Page, error) {
	if f.scrapeFunc != nil {
		return f.scrapeFunc(ctx, url)
	}
	return nil, nil
}

const longBody = "Wir sind ein Familienbetrieb aus Berlin und verkaufen handgemachte Kerzen. " +
	"Unsere Produkte werden aus regionalem Bienenwachs gefertigt und europaweit versendet."

// testSite serves a homepage with translation markers and an imprint page.
func testSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `<html lang="de"><head>
			<title>Kerzen Berlin</title>
			<link rel="alternate" hreflang="de" href="https://example.de/">
			<link rel="alternate" hreflang="en" href="https://example.de/en/">
		</head><body><main><p>%s</p></main></body></html>`, longBody)
	})
	mux.HandleFunc("/impressum", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<html><head><title>Impressum</title></head><body><main>
			<h1>Impressum</h1>
			<p>Musterfirma GmbH, Musterstrasse 1, 12345 Berlin.
			E-Mail: info@musterfirma.de Telefon: +49 30 1234567.
			Vertretungsberechtigt: Max Mustermann. USt-IdNr: DE123456789.</p>
		</main></body></html>`)
	})
	return httptest.NewServer(mux)
}

func TestCrawlDirectProbeOnly(t *testing.T) {
	server := testSite(t)
	defer server.Close()

	crawler := New(nil, fastOptions(), nil)
	result, err := crawler.Crawl(context.Background(), server.URL)

	require.NoError(t, err)
	require.NotNil(t, result)

	var imprint *types.Page
	for i := range result.Pages {
		if strings.HasSuffix(result.Pages[i].URL, "/impressum") {
			imprint = &result.Pages[i]
		}
	}
	require.NotNil(t, imprint, "imprint page should be found by the direct probe")
	assert.Equal(t, types.PageTypeLegal, imprint.Type)

	assert.Equal(t, "info@musterfirma.de", result.Contact.Email)
	assert.Contains(t, result.Contact.Phone, "+49")

	assert.True(t, result.Translation.HasHreflang)
	assert.ElementsMatch(t, []string{"de", "en"}, result.Translation.Languages)
	assert.True(t, result.Translation.MixedLanguage)
}

func TestCrawlKeepsPartialPagesWhenPollNeverCompletes(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	partial := make([]types.Page, 12)
	for i := range partial {
		partial[i] = types.Page{
			URL:     fmt.Sprintf("https://example.de/page-%d", i),
			Title:   fmt.Sprintf("Page %d", i),
			Content: longBody,
		}
	}
	provider := &fakeProvider{
		pollFunc: func(_ context.Context, _ string) (*CrawlStatus, error) {
			return &CrawlStatus{Status: CrawlScraping, Pages: partial}, nil
		},
	}

	opts := fastOptions()
	opts.CrawlBudget = 60 * time.Millisecond
	opts.PollInterval = 10 * time.Millisecond

	crawler := New(provider, opts, nil)
	result, err := crawler.Crawl(context.Background(), notFound.URL)

	require.NoError(t, err, "partial pages must be accepted, not treated as failure")
	assert.Len(t, result.Pages, 12)
}

func TestCrawlFailsWithZeroPages(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	crawler := New(nil, fastOptions(), nil)
	_, err := crawler.Crawl(context.Background(), notFound.URL)

	var crawlErr *Error
	require.ErrorAs(t, err, &crawlErr)
	assert.Contains(t, err.Error(), "no pages")
}

func TestCrawlInvalidURL(t *testing.T) {
	crawler := New(nil, fastOptions(), nil)
	_, err := crawler.Crawl(context.Background(), "not-a-url")

	var crawlErr *Error
	assert.ErrorAs(t, err, &crawlErr)
}

func TestCrawlProviderCompletesImmediately(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	provider := &fakeProvider{
		pollFunc: func(_ context.Context, _ string) (*CrawlStatus, error) {
			return &CrawlStatus{
				Status: CrawlCompleted,
				Pages: []types.Page{
					{URL: "https://example.de/agb", Title: "AGB", Content: longBody},
				},
			}, nil
		},
	}

	crawler := New(provider, fastOptions(), nil)
	result, err := crawler.Crawl(context.Background(), notFound.URL)

	require.NoError(t, err)
	require.Len(t, result.Pages, 1)
	assert.Equal(t, types.PageTypeLegal, result.Pages[0].Type)
}

func TestMergePagesCrawlWins(t *testing.T) {
	homepage := &types.Page{URL: "https://example.de/", Content: "home (direct)"}
	direct := []types.Page{
		{URL: "https://example.de/impressum", Content: "imprint (direct)"},
		{URL: "https://example.de/agb/", Content: "terms (direct)"},
	}
	crawled := []types.Page{
		{URL: "https://example.de/agb", Content: "terms (crawl)"},
		{URL: "https://example.de/versand", Content: "shipping (crawl)"},
	}

	merged := mergePages(homepage, direct, crawled)

	byURL := make(map[string]string)
	for _, page := range merged {
		byURL[normalizeURL(page.URL)] = page.Content
	}

	assert.Len(t, merged, 4)
	assert.Equal(t, "terms (crawl)", byURL["https://example.de/agb"], "crawl version wins on URL collision")
	assert.Equal(t, "imprint (direct)", byURL["https://example.de/impressum"], "direct fetch fills gaps")
	assert.Equal(t, "home (direct)", byURL["https://example.de"])
}

func TestMergePagesDropsEmptyContent(t *testing.T) {
	merged := mergePages(nil, []types.Page{{URL: "https://example.de/x", Content: "   "}}, nil)
	assert.Empty(t, merged)
}

// fastOptions keeps test crawls quick: no provider budget, tiny timeouts.
func fastOptions() *Options {
	return &Options{
		PageLimit:       25,
		CrawlBudget:     200 * time.Millisecond,
		PollInterval:    20 * time.Millisecond,
		DirectBatchSize: 8,
		Fetch:           &fetch.Options{Timeout: 2 * time.Second, UserAgent: fetch.DefaultUserAgent},
	}
}

package crawl

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/site-auditor/internal/fetch"
	"github.com/jonathan/site-auditor/internal/telemetry"
	"github.com/jonathan/site-auditor/internal/types"
)

// minUsableContent is the minimum extracted text length for a page to enter
// the corpus. Shorter bodies are soft 404s or empty templates.
const minUsableContent = 80

// Options configures a crawl run.
type Options struct {
	// PageLimit caps the provider-side crawl.
	PageLimit int

	// CrawlBudget is the wall-clock limit for provider polling. Pages
	// collected before the budget runs out are kept.
	CrawlBudget time.Duration

	// PollInterval is the pause between provider status polls.
	PollInterval time.Duration

	// DirectBatchSize bounds concurrent direct fetches of catalogue paths.
	DirectBatchSize int

	// BrowserFallback enables headless rendering for pages whose plain
	// fetch yields too little text.
	BrowserFallback bool

	// Fetch configures the plain HTTP fetches.
	Fetch *fetch.Options
}

// DefaultOptions returns the production crawl settings.
func DefaultOptions() *Options {
	return &Options{
		PageLimit:       25,
		CrawlBudget:     90 * time.Second,
		PollInterval:    3 * time.Second,
		DirectBatchSize: 4,
		BrowserFallback: false,
		Fetch:           fetch.DefaultOptions(),
	}
}

// Crawler gathers a site's pages from two sources at once: a provider-side
// crawl and a direct probe of well-known legal paths. provider may be nil,
// in which case only the direct probe runs.
type Crawler struct {
	provider Provider
	opts     *Options
	logger   *zap.Logger
}

// New creates a crawler.
func New(provider Provider, opts *Options, logger *zap.Logger) *Crawler {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Fetch == nil {
		opts.Fetch = fetch.DefaultOptions()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{provider: provider, opts: opts, logger: logger}
}

// Crawl fetches the site and returns the merged, classified corpus along
// with contact details and translation signals. A provider timeout with
// partial pages is not an error; zero pages from both branches is.
func (c *Crawler) Crawl(ctx context.Context, siteURL string) (*types.CrawlResult, error) {
	base, err := url.Parse(siteURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &Error{Message: "invalid site URL: " + siteURL, Cause: err}
	}

	homepage, homepageHTML := c.fetchHomepage(ctx, siteURL)
	platform := fetch.DetectPlatform(siteURL, homepageHTML)
	c.logger.Info("starting crawl",
		zap.String("url", siteURL),
		zap.String("platform", string(platform)))

	var crawled, direct []types.Page
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		crawled = c.runProviderCrawl(gctx, siteURL)
		return nil
	})
	g.Go(func() error {
		direct = c.probeLegalPaths(gctx, base, platform)
		return nil
	})
	// Branches recover their own failures and return what they collected.
	_ = g.Wait()

	merged := mergePages(homepage, direct, crawled)
	if len(merged) == 0 {
		return nil, &Error{Message: "no pages could be fetched from " + siteURL}
	}

	for i := range merged {
		merged[i].Type = ClassifyPage(merged[i])
		merged[i].Content = TruncateContent(merged[i].Content, merged[i].Type)
	}

	result := &types.CrawlResult{
		Pages:       merged,
		Contact:     ExtractContact(merged),
		Translation: DetectTranslationSignals(homepageHTML, merged),
	}
	telemetry.PagesCrawled.Add(float64(len(merged)))

	c.logger.Info("crawl finished",
		zap.String("url", siteURL),
		zap.Int("pages", len(merged)),
		zap.Int("legal_pages", len(result.LegalPages())),
		zap.Strings("languages", result.Translation.Languages))

	return result, nil
}

// runProviderCrawl starts a provider crawl and polls it until completion or
// the wall-clock budget runs out, keeping whatever pages arrived.
func (c *Crawler) runProviderCrawl(ctx context.Context, siteURL string) []types.Page {
	if c.provider == nil {
		return nil
	}

	id, err := c.provider.StartCrawl(ctx, siteURL, c.opts.PageLimit)
	if err != nil {
		c.logger.Warn("provider crawl did not start", zap.Error(err))
		return nil
	}

	deadline := time.Now().Add(c.opts.CrawlBudget)
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	var collected []types.Page
	for {
		select {
		case <-ctx.Done():
			return collected
		case <-ticker.C:
		}

		status, err := c.provider.PollCrawl(ctx, id)
		if err != nil {
			c.logger.Warn("crawl poll failed", zap.String("crawl_id", id), zap.Error(err))
		} else {
			if len(status.Pages) > 0 {
				collected = status.Pages
			}
			if status.Status == CrawlCompleted {
				return collected
			}
			if status.Status == CrawlFailed {
				c.logger.Warn("provider crawl failed", zap.String("crawl_id", id), zap.Int("pages_kept", len(collected)))
				return collected
			}
		}

		if time.Now().After(deadline) {
			c.logger.Warn("crawl budget exhausted, keeping partial pages",
				zap.String("crawl_id", id),
				zap.Int("pages_kept", len(collected)))
			return collected
		}
	}
}

// probeLegalPaths fetches the catalogue paths in small batches.
func (c *Crawler) probeLegalPaths(ctx context.Context, base *url.URL, platform fetch.Platform) []types.Page {
	paths := append(legalPathCatalogue(), fetch.PlatformLegalPaths(platform)...)

	seen := make(map[string]bool)
	targets := make([]string, 0, len(paths))
	for _, path := range paths {
		ref, err := url.Parse(path)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref).String()
		key := normalizeURL(abs)
		if !seen[key] {
			seen[key] = true
			targets = append(targets, abs)
		}
	}

	batch := c.opts.DirectBatchSize
	if batch < 1 {
		batch = 1
	}

	var mu sync.Mutex
	var pages []types.Page
	for start := 0; start < len(targets); start += batch {
		end := start + batch
		if end > len(targets) {
			end = len(targets)
		}

		var wg sync.WaitGroup
		for _, target := range targets[start:end] {
			wg.Add(1)
			go func(target string) {
				defer wg.Done()
				page := c.fetchOne(ctx, target)
				if page == nil {
					return
				}
				mu.Lock()
				pages = append(pages, *page)
				mu.Unlock()
			}(target)
		}
		wg.Wait()

		if ctx.Err() != nil {
			break
		}
	}
	return pages
}

// fetchOne tries the provider's single-page scrape first and falls back to
// a plain fetch. Returns nil when the page is unavailable or too thin.
func (c *Crawler) fetchOne(ctx context.Context, target string) *types.Page {
	if c.provider != nil {
		page, err := c.provider.ScrapeOne(ctx, target)
		if err != nil {
			c.logger.Debug("provider scrape failed, falling back", zap.String("url", target), zap.Error(err))
		} else if page != nil && usable(page.Content) {
			return page
		}
	}
	return c.plainFetch(ctx, target, fetch.LegalPageSelectors())
}

func (c *Crawler) plainFetch(ctx context.Context, target string, selectors []string) *types.Page {
	result, err := fetch.URL(ctx, target, c.opts.Fetch)
	if err != nil {
		return nil
	}

	text, err := fetch.ExtractMainText(result.HTML, selectors)
	if err != nil {
		return nil
	}

	if c.opts.BrowserFallback && fetch.ShouldUseBrowser(text) {
		if html, berr := fetch.BrowserSimple(ctx, target, c.logger); berr == nil {
			rendered, rerr := fetch.ExtractMainText(html, selectors)
			if rerr == nil && len(rendered) > len(text) {
				text = rendered
				result.HTML = html
			}
		}
	}

	if !usable(text) {
		return nil
	}
	return &types.Page{
		URL:     target,
		Title:   fetch.ExtractTitle(result.HTML),
		Content: text,
	}
}

// fetchHomepage fetches the site root, returning both the page and the raw
// HTML for platform detection and translation signals.
func (c *Crawler) fetchHomepage(ctx context.Context, siteURL string) (*types.Page, string) {
	result, err := fetch.URL(ctx, siteURL, c.opts.Fetch)
	if err != nil {
		c.logger.Warn("homepage fetch failed", zap.String("url", siteURL), zap.Error(err))
		return nil, ""
	}
	html := result.HTML

	text, err := fetch.ExtractMainText(html, fetch.DefaultTextSelectors())
	if err != nil {
		return nil, html
	}

	if c.opts.BrowserFallback && fetch.ShouldUseBrowser(text) {
		if rendered, berr := fetch.BrowserSimple(ctx, siteURL, c.logger); berr == nil {
			html = rendered
			if renderedText, rerr := fetch.ExtractMainText(html, fetch.DefaultTextSelectors()); rerr == nil {
				text = renderedText
			}
		}
	}

	if !usable(text) {
		return nil, html
	}
	return &types.Page{
		URL:     siteURL,
		Title:   fetch.ExtractTitle(html),
		Content: text,
	}, html
}

// mergePages merges the three page sources by normalized URL. Provider
// crawl pages win over direct fetches because the provider extraction is
// usually cleaner; direct fetches fill the gaps the crawler missed.
func mergePages(homepage *types.Page, direct, crawled []types.Page) []types.Page {
	index := make(map[string]int)
	var out []types.Page

	add := func(page types.Page, overwrite bool) {
		key := normalizeURL(page.URL)
		if key == "" || strings.TrimSpace(page.Content) == "" {
			return
		}
		if i, ok := index[key]; ok {
			if overwrite {
				out[i] = page
			}
			return
		}
		index[key] = len(out)
		out = append(out, page)
	}

	if homepage != nil {
		add(*homepage, false)
	}
	for _, page := range direct {
		add(page, false)
	}
	for _, page := range crawled {
		add(page, true)
	}
	return out
}

func normalizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return strings.TrimSuffix(rawURL, "/")
	}
	parsed.Fragment = ""
	return strings.TrimSuffix(parsed.String(), "/")
}

func usable(content string) bool {
	return len(strings.TrimSpace(content)) >= minUsableContent
}

package keywords

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/site-auditor/internal/llm"
	"github.com/jonathan/site-auditor/internal/prompts"
	"github.com/jonathan/site-auditor/internal/telemetry"
	"github.com/jonathan/site-auditor/internal/types"
)

const (
	resultsPerQuery  = 5
	maxKeywordLength = 80
)

// ErrInvalidSiteURL is returned when no usable domain can be derived from
// the requested site.
var ErrInvalidSiteURL = errors.New("invalid site url")

// queryPatterns are the fixed searches run per discovery. %[1]s is the
// site's domain, %[2]s the topic. Topic patterns are skipped when no topic
// is given.
var queryPatterns = []string{
	"site:%[1]s",
	"%[1]s %[2]s",
	"%[2]s online shop",
	"best %[2]s",
}

// KeywordStore persists discovered keywords.
type KeywordStore interface {
	SaveKeywords(ctx context.Context, siteURL string, keywords []types.Keyword) error
}

// Pipeline runs keyword discovery: search, LLM extraction, normalization
// and persistence.
type Pipeline struct {
	searcher Searcher
	client   llm.Client
	store    KeywordStore
	logger   *zap.Logger
}

// NewPipeline wires the discovery stages. store may be nil; discovered
// keywords are then returned without being persisted.
func NewPipeline(searcher Searcher, client llm.Client, store KeywordStore, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{searcher: searcher, client: client, store: store, logger: logger}
}

// Discover searches the fixed query patterns, extracts candidate keywords
// from the result titles and snippets, and persists the deduplicated set.
// Individual failed queries are skipped; an empty result set is valid.
func (p *Pipeline) Discover(ctx context.Context, siteURL, topic string) ([]types.Keyword, error) {
	domain := domainOf(siteURL)
	if domain == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSiteURL, siteURL)
	}

	var lines []string
	for _, pattern := range queryPatterns {
		if topic == "" && strings.Contains(pattern, "%[2]s") {
			continue
		}
		query := strings.TrimSpace(fmt.Sprintf(pattern, domain, topic))
		results, err := p.searcher.Search(ctx, query, resultsPerQuery)
		if err != nil {
			p.logger.Warn("search query failed",
				zap.String("query", query),
				zap.Error(err))
			continue
		}
		for _, r := range results {
			lines = append(lines, fmt.Sprintf("%s: %s", r.Title, r.Snippet))
		}
	}

	if len(lines) == 0 {
		p.logger.Info("no search results for keyword discovery",
			zap.String("site_url", siteURL),
			zap.String("topic", topic))
		return nil, nil
	}

	extracted, err := p.extract(ctx, siteURL, topic, lines)
	if err != nil {
		return nil, err
	}

	keywords := normalizeKeywords(extracted)
	if p.store != nil && len(keywords) > 0 {
		if err := p.store.SaveKeywords(ctx, siteURL, keywords); err != nil {
			return nil, fmt.Errorf("persist keywords: %w", err)
		}
	}
	telemetry.KeywordsExtracted.Add(float64(len(keywords)))

	p.logger.Info("keyword discovery finished",
		zap.String("site_url", siteURL),
		zap.Int("queries_with_results", len(lines)),
		zap.Int("keywords", len(keywords)))
	return keywords, nil
}

type extractedKeyword struct {
	Keyword   string  `json:"keyword"`
	Relevance float64 `json:"relevance"`
}

func (p *Pipeline) extract(ctx context.Context, siteURL, topic string, lines []string) ([]extractedKeyword, error) {
	prompt := prompts.Format(prompts.MustGet("keywords.json", "extract-keywords"), map[string]string{
		"SiteURL": siteURL,
		"Topic":   topic,
		"Results": strings.Join(lines, "\n"),
	})

	text, err := p.client.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Content: prompt}},
		Tier:        llm.TierLite,
		JSONOutput:  true,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("extract keywords: %w", err)
	}

	var extracted []extractedKeyword
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(text)), &extracted); err != nil {
		return nil, &llm.MalformedOutputError{Message: "keyword extraction returned invalid JSON", Cause: err}
	}
	return extracted, nil
}

// normalizeKeywords lowercases, collapses whitespace and dedupes, dropping
// blanks and implausibly long entries. Relevance is clamped to [0, 1].
func normalizeKeywords(extracted []extractedKeyword) []types.Keyword {
	seen := make(map[string]bool)
	keywords := make([]types.Keyword, 0, len(extracted))
	for _, e := range extracted {
		kw := strings.ToLower(strings.Join(strings.Fields(e.Keyword), " "))
		if kw == "" || len(kw) > maxKeywordLength || seen[kw] {
			continue
		}
		seen[kw] = true

		rel := e.Relevance
		if rel < 0 {
			rel = 0
		}
		if rel > 1 {
			rel = 1
		}
		keywords = append(keywords, types.Keyword{Keyword: kw, Source: "cse", Relevance: rel})
	}
	return keywords
}

// domainOf extracts the bare host from a site URL. Bare domains without a
// scheme parse entirely into the path.
func domainOf(siteURL string) string {
	u, err := url.Parse(strings.TrimSpace(siteURL))
	if err != nil {
		return ""
	}
	host := u.Host
	if host == "" {
		host = strings.Split(u.Path, "/")[0]
	}
	if !strings.Contains(host, ".") {
		return ""
	}
	return strings.TrimPrefix(host, "www.")
}

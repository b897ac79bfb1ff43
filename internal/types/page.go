// Package types provides type definitions for structured data used throughout the site-auditor system.
package types

// PageType classifies a crawled page by the kind of content it carries.
type PageType string

const (
	// PageTypeLegal marks imprint, terms, privacy, withdrawal and similar pages.
	PageTypeLegal PageType = "legal"
	// PageTypeContact marks contact/about pages.
	PageTypeContact PageType = "contact"
	// PageTypeGeneral marks everything else.
	PageTypeGeneral PageType = "general"
)

// Page is one fetched URL with its extracted text content.
// Pages are immutable once produced by the crawler.
type Page struct {
	URL     string   `json:"url"`
	Title   string   `json:"title,omitempty"`
	Content string   `json:"content"`
	Type    PageType `json:"type"`
}

// Contact holds contact details extracted from contact/legal pages.
type Contact struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// TranslationSignals describes what the crawler learned about the site's
// language setup. The localization analysis tasks consume this as context.
type TranslationSignals struct {
	Languages           []string `json:"languages,omitempty"`
	HasLanguageSwitcher bool     `json:"has_language_switcher"`
	HasHreflang         bool     `json:"has_hreflang"`
	MixedLanguage       bool     `json:"mixed_language"`
}

// CrawlResult is the merged output of the site crawl and the direct
// legal-page fetch for one target URL.
type CrawlResult struct {
	Pages       []Page             `json:"pages"`
	Contact     Contact            `json:"contact"`
	Translation TranslationSignals `json:"translation_signals"`
}

// LegalPages returns the subset of pages classified as legal.
func (r *CrawlResult) LegalPages() []Page {
	var out []Page
	for _, p := range r.Pages {
		if p.Type == PageTypeLegal {
			out = append(out, p)
		}
	}
	return out
}

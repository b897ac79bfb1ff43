// Package crawl - signals.go extracts contact details and translation
// signals from crawled content.
package crawl

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/site-auditor/internal/types"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\(?\d[\d\s\-/().]{5,}\d`)
)

// knownLanguageCodes are the path prefixes and hreflang values recognized as
// site languages.
var knownLanguageCodes = map[string]bool{
	"de": true, "nl": true, "en": true, "fr": true,
	"es": true, "it": true, "pl": true, "da": true,
}

// ExtractContact finds an email address and phone number by regex, checking
// contact and legal pages first and falling back to the whole corpus.
func ExtractContact(pages []types.Page) types.Contact {
	preferred := make([]types.Page, 0, len(pages))
	for _, page := range pages {
		if page.Type == types.PageTypeContact || page.Type == types.PageTypeLegal {
			preferred = append(preferred, page)
		}
	}
	if len(preferred) == 0 {
		preferred = pages
	}

	var contact types.Contact
	for _, page := range preferred {
		if contact.Email == "" {
			contact.Email = findEmail(page.Content)
		}
		if contact.Phone == "" {
			contact.Phone = findPhone(page.Content)
		}
		if contact.Email != "" && contact.Phone != "" {
			break
		}
	}
	return contact
}

func findEmail(text string) string {
	matches := emailPattern.FindAllString(text, 10)
	if len(matches) == 0 {
		return ""
	}
	// Prefer the address that looks like a real inbox over tracking or
	// asset-name matches.
	for _, m := range matches {
		local := strings.ToLower(strings.SplitN(m, "@", 2)[0])
		for _, hint := range []string{"info", "kontakt", "contact", "mail", "office", "hello", "support", "service"} {
			if strings.Contains(local, hint) {
				return m
			}
		}
	}
	return matches[0]
}

func findPhone(text string) string {
	for _, candidate := range phonePattern.FindAllString(text, 20) {
		digits := 0
		for _, r := range candidate {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		// Real phone numbers have 7 to 15 digits and start with + or 0.
		// Anything else is an order number or a date range.
		if digits < 7 || digits > 15 {
			continue
		}
		trimmed := strings.TrimLeft(candidate, "(")
		if !strings.HasPrefix(trimmed, "+") && !strings.HasPrefix(trimmed, "0") {
			continue
		}
		return strings.TrimSpace(candidate)
	}
	return ""
}

// DetectTranslationSignals derives the site's language picture from the
// homepage HTML (hreflang alternates, lang attribute, switcher widgets) and
// from language path prefixes across all page URLs.
func DetectTranslationSignals(homepageHTML string, pages []types.Page) types.TranslationSignals {
	signals := types.TranslationSignals{}
	seen := make(map[string]bool)
	addLanguage := func(code string) {
		code = normalizeLanguage(code)
		if code == "" || seen[code] {
			return
		}
		seen[code] = true
		signals.Languages = append(signals.Languages, code)
	}

	if homepageHTML != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(homepageHTML))
		if err == nil {
			if lang, ok := doc.Find("html").Attr("lang"); ok {
				addLanguage(lang)
			}
			doc.Find(`link[rel="alternate"][hreflang]`).Each(func(_ int, s *goquery.Selection) {
				if hreflang, ok := s.Attr("hreflang"); ok && hreflang != "x-default" {
					signals.HasHreflang = true
					addLanguage(hreflang)
				}
			})
			signals.HasLanguageSwitcher = hasLanguageSwitcher(doc)
		}
	}

	for _, page := range pages {
		if prefix := languagePathPrefix(page.URL); prefix != "" {
			addLanguage(prefix)
		}
	}

	signals.MixedLanguage = len(signals.Languages) > 1
	return signals
}

func hasLanguageSwitcher(doc *goquery.Document) bool {
	selectors := `.language-switcher, .lang-switcher, .language-selector, #language-selector, [class*="language-select"], select[name*="lang"], [data-language-switcher]`
	if doc.Find(selectors).Length() > 0 {
		return true
	}

	// Nav links whose whole text is a language name also count.
	names := map[string]bool{
		"en": true, "de": true, "nl": true, "fr": true,
		"english": true, "deutsch": true, "nederlands": true, "français": true, "francais": true,
	}
	found := false
	doc.Find("nav a, header a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		if names[text] {
			found = true
			return false
		}
		return true
	})
	return found
}

// languagePathPrefix returns the language code when the URL path starts
// with one, like /en/shipping.
func languagePathPrefix(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	first := strings.ToLower(segments[0])
	if knownLanguageCodes[first] {
		return first
	}
	return ""
}

func normalizeLanguage(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if idx := strings.IndexAny(code, "-_"); idx > 0 {
		code = code[:idx]
	}
	if len(code) != 2 {
		return ""
	}
	return code
}

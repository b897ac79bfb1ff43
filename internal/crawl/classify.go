// Package crawl - classify.go assigns page types and applies per-type
// content budgets.
package crawl

import (
	"net/url"
	"strings"

	"github.com/jonathan/site-auditor/internal/types"
)

// Content budgets in characters. Legal and contact pages carry the evidence
// the analyses depend on, so they keep more text than general pages.
const (
	LegalContentBudget   = 12000
	ContactContentBudget = 6000
	GeneralContentBudget = 4000
)

// legalMarkers match legal page URLs and titles across German, Dutch, and
// English sites.
var legalMarkers = []string{
	"impressum", "imprint", "legal-notice", "legal notice", "mentions-legales", "rechtliches",
	"datenschutz", "privacy", "privacybeleid", "privacyverklaring",
	"agb", "terms", "voorwaarden", "conditions",
	"widerruf", "withdrawal", "herroeping", "revocation",
	"versand", "shipping", "verzending", "lieferung", "delivery",
	"zahlung", "payment", "betaling", "betalen",
	"retour", "returns", "refund", "ruckgabe", "rückgabe",
	"cookie",
}

// contactMarkers match contact page URLs and titles.
var contactMarkers = []string{
	"kontakt", "contact", "anfahrt", "standort", "erreichbarkeit",
}

// ClassifyPage assigns a page type from the URL path, the title, and a
// prefix of the body. Legal wins over contact because imprint pages carry
// both kinds of markers.
func ClassifyPage(page types.Page) types.PageType {
	haystack := strings.ToLower(pagePath(page.URL) + " " + page.Title)

	for _, marker := range legalMarkers {
		if strings.Contains(haystack, marker) {
			return types.PageTypeLegal
		}
	}
	for _, marker := range contactMarkers {
		if strings.Contains(haystack, marker) {
			return types.PageTypeContact
		}
	}

	// Fall back to a body prefix for pages without a telling URL or title.
	prefix := strings.ToLower(contentPrefix(page.Content, 400))
	for _, marker := range []string{"impressum", "privacy policy", "datenschutzerklärung", "algemene voorwaarden"} {
		if strings.Contains(prefix, marker) {
			return types.PageTypeLegal
		}
	}

	return types.PageTypeGeneral
}

// BudgetFor returns the content budget for a page type.
func BudgetFor(pageType types.PageType) int {
	switch pageType {
	case types.PageTypeLegal:
		return LegalContentBudget
	case types.PageTypeContact:
		return ContactContentBudget
	default:
		return GeneralContentBudget
	}
}

// TruncateContent cuts content to the budget for the page type, breaking on
// a whitespace boundary where possible.
func TruncateContent(content string, pageType types.PageType) string {
	budget := BudgetFor(pageType)
	if len(content) <= budget {
		return content
	}

	runes := []rune(content)
	if len(runes) <= budget {
		return content
	}
	cut := string(runes[:budget])

	// Back up to the last whitespace so we do not end mid-word.
	if idx := strings.LastIndexAny(cut, " \n\t"); idx > budget/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}

func pagePath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return parsed.Path
}

func contentPrefix(content string, n int) string {
	runes := []rune(content)
	if len(runes) <= n {
		return content
	}
	return string(runes[:n])
}

// Package crawl - paths.go holds the catalogue of well-known legal and
// contact paths probed directly alongside the provider crawl.
package crawl

// legalPathCatalogue returns the path suffixes probed on every audited site.
// Crawlers routinely miss these pages (footer-only links, noindex), so they
// are fetched directly. German, Dutch, and English forms are covered.
func legalPathCatalogue() []string {
	return []string{
		// German
		"/impressum",
		"/imprint",
		"/datenschutz",
		"/datenschutzerklaerung",
		"/agb",
		"/widerruf",
		"/widerrufsrecht",
		"/widerrufsbelehrung",
		"/versand",
		"/zahlung-und-versand",
		"/kontakt",
		"/ueber-uns",

		// Dutch
		"/algemene-voorwaarden",
		"/privacybeleid",
		"/privacyverklaring",
		"/herroepingsrecht",
		"/verzending",
		"/betalen",
		"/retourneren",
		"/cookiebeleid",
		"/contact",
		"/over-ons",

		// English
		"/privacy-policy",
		"/privacy",
		"/terms",
		"/terms-and-conditions",
		"/terms-of-service",
		"/legal-notice",
		"/shipping",
		"/payment",
		"/returns",
		"/refund-policy",
		"/cookie-policy",
		"/contact-us",
		"/about-us",
	}
}

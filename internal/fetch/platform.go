// Package fetch - platform.go provides site platform detection and
// platform-specific selectors and legal page paths.
package fetch

import (
	"net/url"
	"strings"
)

// Platform represents a known website platform.
type Platform string

const (
	// PlatformShopify is the Shopify shop platform
	PlatformShopify Platform = "shopify"
	// PlatformWooCommerce is WooCommerce on WordPress
	PlatformWooCommerce Platform = "woocommerce"
	// PlatformWordPress is plain WordPress
	PlatformWordPress Platform = "wordpress"
	// PlatformWix is the Wix site builder
	PlatformWix Platform = "wix"
	// PlatformJimdo is the Jimdo site builder
	PlatformJimdo Platform = "jimdo"
	// PlatformSquarespace is the Squarespace site builder
	PlatformSquarespace Platform = "squarespace"
	// PlatformUnknown is an unrecognized platform
	PlatformUnknown Platform = "unknown"
)

// DetectPlatform identifies the website platform from the URL and the raw
// HTML of any fetched page. HTML markers win over host patterns because
// shops usually run on custom domains.
func DetectPlatform(urlStr, html string) Platform {
	lower := strings.ToLower(html)

	if strings.Contains(lower, "cdn.shopify.com") || strings.Contains(lower, "shopify.theme") {
		return PlatformShopify
	}
	if strings.Contains(lower, "wp-content/plugins/woocommerce") || strings.Contains(lower, "woocommerce-page") {
		return PlatformWooCommerce
	}
	if strings.Contains(lower, `content="wordpress`) || strings.Contains(lower, "wp-content/themes") {
		return PlatformWordPress
	}
	if strings.Contains(lower, "static.parastorage.com") || strings.Contains(lower, `content="wix.com`) {
		return PlatformWix
	}
	if strings.Contains(lower, "jimstatic.com") || strings.Contains(lower, `content="jimdo`) {
		return PlatformJimdo
	}
	if strings.Contains(lower, "static1.squarespace.com") || strings.Contains(lower, "this is squarespace") {
		return PlatformSquarespace
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}
	host := strings.ToLower(parsed.Host)

	switch {
	case strings.Contains(host, "myshopify.com"):
		return PlatformShopify
	case strings.Contains(host, "wixsite.com"):
		return PlatformWix
	case strings.Contains(host, "jimdosite.com") || strings.Contains(host, "jimdofree.com"):
		return PlatformJimdo
	case strings.Contains(host, "squarespace.com"):
		return PlatformSquarespace
	case strings.Contains(host, "wordpress.com"):
		return PlatformWordPress
	}

	return PlatformUnknown
}

// PlatformLegalPaths returns extra legal page paths known for a platform,
// used to supplement the standard catalogue when probing for legal pages.
func PlatformLegalPaths(platform Platform) []string {
	switch platform {
	case PlatformShopify:
		return []string{
			"/policies/privacy-policy",
			"/policies/terms-of-service",
			"/policies/refund-policy",
			"/policies/shipping-policy",
			"/policies/legal-notice",
		}
	case PlatformWooCommerce, PlatformWordPress:
		return []string{
			"/impressum/",
			"/datenschutz/",
			"/datenschutzerklaerung/",
			"/widerrufsrecht/",
			"/agb/",
		}
	case PlatformJimdo:
		return []string{
			"/impressum",
			"/datenschutz",
			"/agb",
		}
	default:
		return nil
	}
}

// PlatformNoiseSelectors returns noise exclusion selectors for a platform.
// Cookie banners are deliberately kept because their text is evidence for
// the privacy analysis.
func PlatformNoiseSelectors(platform Platform) []string {
	common := []string{
		".newsletter-popup",
		".newsletter-modal",
		"#newsletter-signup",
		".search-overlay",
		".cart-drawer",
		".mini-cart",
		".social-share",
		".share-buttons",
	}

	switch platform {
	case PlatformShopify:
		return append(common,
			".shopify-section--announcement-bar",
			"#shopify-section-announcement-bar",
			"cart-drawer",
			".predictive-search",
		)
	case PlatformWooCommerce:
		return append(common,
			".widget_shopping_cart",
			".woocommerce-store-notice",
		)
	case PlatformWordPress:
		return append(common,
			".wp-block-comments",
			"#comments",
		)
	case PlatformWix:
		return append(common,
			"[data-testid='inline-popup']",
			"[id^='comp-'] .quick-view",
		)
	default:
		return common
	}
}

package report

import (
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/site-auditor/internal/types"
)

// missingIndicators are the phrasings a finding uses when it claims a page
// or element does not exist on the site.
var missingIndicators = []string{
	"missing",
	"not found",
	"not present",
	"no ",
	"lacks",
	"without",
	"absent",
	"does not",
	"doesn't",
	"could not find",
	"cannot find",
	"fehlt",
	"kein ",
	"keine ",
	"ontbreekt",
	"geen ",
}

// topicEvidence pairs the trigger words that identify a "missing X" claim
// with the corpus keywords that prove X exists after all. Keywords cover
// German, Dutch and English.
type topicEvidence struct {
	Topic    string
	Triggers []string
	Evidence []string
}

var verificationTable = []topicEvidence{
	{
		Topic:    "imprint",
		Triggers: []string{"imprint", "impressum", "legal notice", "colofon"},
		Evidence: []string{"impressum", "imprint", "legal notice", "colofon", "angaben gemäß § 5"},
	},
	{
		Topic:    "terms",
		Triggers: []string{"terms and conditions", "terms of service", "general terms", "agb", "algemene voorwaarden"},
		Evidence: []string{"agb", "allgemeine geschäftsbedingungen", "terms and conditions", "terms of service", "terms & conditions", "algemene voorwaarden"},
	},
	{
		Topic:    "privacy",
		Triggers: []string{"privacy policy", "privacy statement", "datenschutz", "privacybeleid", "privacyverklaring"},
		Evidence: []string{"datenschutz", "privacy policy", "privacy statement", "privacybeleid", "privacyverklaring"},
	},
	{
		Topic:    "withdrawal",
		Triggers: []string{"withdrawal", "right of cancellation", "cancellation policy", "widerruf", "herroeping", "revocation"},
		Evidence: []string{"widerruf", "widerrufsrecht", "widerrufsbelehrung", "right of withdrawal", "herroepingsrecht", "herroeping", "cancellation policy"},
	},
	{
		Topic:    "contact",
		Triggers: []string{"contact information", "contact details", "contact page", "contact data", "kontaktdaten", "contactgegevens"},
		Evidence: []string{"kontakt", "contact", "@"},
	},
	{
		Topic:    "shipping",
		Triggers: []string{"shipping", "delivery information", "delivery times", "versand", "lieferzeit", "verzending", "levertijd"},
		Evidence: []string{"versand", "versandkosten", "lieferzeit", "shipping", "delivery", "verzending", "verzendkosten", "levertijd"},
	},
	{
		Topic:    "payment",
		Triggers: []string{"payment method", "payment information", "payment options", "zahlungsart", "betaalmethode"},
		Evidence: []string{"zahlung", "zahlungsart", "payment", "paypal", "kreditkarte", "credit card", "betaling", "ideal", "klarna"},
	},
	{
		Topic:    "cookies",
		Triggers: []string{"cookie banner", "cookie policy", "cookie consent", "cookie notice", "cookie-banner", "cookie-richtlinie"},
		Evidence: []string{"cookie"},
	},
}

// VerifyFindings drops findings that claim something is missing when the
// crawled corpus proves it exists. All other findings pass through
// untouched. The check never calls the model, so a drop is reproducible
// from the corpus text alone.
func VerifyFindings(findings []types.Finding, corpus string, logger *zap.Logger) []types.Finding {
	if logger == nil {
		logger = zap.NewNop()
	}
	corpusLower := strings.ToLower(corpus)
	kept := make([]types.Finding, 0, len(findings))
	for _, finding := range findings {
		if topic, drop := contradictedByCorpus(finding, corpusLower); drop {
			logger.Info("dropping finding contradicted by site content",
				zap.String("topic", topic),
				zap.String("problem", finding.Problem))
			continue
		}
		kept = append(kept, finding)
	}
	return kept
}

func contradictedByCorpus(finding types.Finding, corpusLower string) (string, bool) {
	text := strings.ToLower(finding.Problem + " " + finding.Explanation)
	if !claimsMissing(text) {
		return "", false
	}
	for _, entry := range verificationTable {
		if !containsAny(text, entry.Triggers) {
			continue
		}
		for _, evidence := range entry.Evidence {
			if strings.Contains(corpusLower, evidence) {
				return entry.Topic, true
			}
		}
	}
	return "", false
}

func claimsMissing(text string) bool {
	return containsAny(text, missingIndicators)
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

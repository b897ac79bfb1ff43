package report

import (
	"fmt"
	"strings"

	"github.com/jonathan/site-auditor/internal/types"
)

// actionCatalog maps finding topics to the canonical remediation step. The
// action list is rebuilt from this table so every entry traces back to at
// least one verified finding.
var actionCatalog = []struct {
	Topic    string
	Keywords []string
	Action   string
}{
	{
		Topic:    "imprint",
		Keywords: []string{"imprint", "impressum", "legal notice", "colofon"},
		Action:   "Publish a complete imprint with company name, address, representative, commercial register entry and VAT ID.",
	},
	{
		Topic:    "terms",
		Keywords: []string{"terms", "agb", "algemene voorwaarden"},
		Action:   "Provide terms and conditions that cover contract conclusion, prices, liability and consumer rights.",
	},
	{
		Topic:    "privacy",
		Keywords: []string{"privacy", "datenschutz", "privacybeleid", "personal data", "gdpr", "dsgvo"},
		Action:   "Publish a privacy policy describing what data is processed, on which legal basis, and the rights of data subjects.",
	},
	{
		Topic:    "withdrawal",
		Keywords: []string{"withdrawal", "widerruf", "herroeping", "cancellation", "revocation"},
		Action:   "Add a withdrawal policy with the statutory instruction and the model withdrawal form.",
	},
	{
		Topic:    "contact",
		Keywords: []string{"contact", "kontakt", "phone number", "email address"},
		Action:   "Make contact details, at minimum an email address and a phone number, easy to find.",
	},
	{
		Topic:    "shipping",
		Keywords: []string{"shipping", "delivery", "versand", "lieferzeit", "verzending", "levertijd"},
		Action:   "State shipping costs and delivery times clearly before checkout.",
	},
	{
		Topic:    "payment",
		Keywords: []string{"payment", "zahlung", "betaling", "betaalmethode"},
		Action:   "List the accepted payment methods including any surcharges.",
	},
	{
		Topic:    "cookies",
		Keywords: []string{"cookie"},
		Action:   "Add a consent banner that blocks non-essential cookies until the visitor agrees, plus a cookie policy.",
	},
	{
		Topic:    "translation",
		Keywords: []string{"translation", "translated", "grammar", "wording", "spelling"},
		Action:   "Have the translated content reviewed and corrected by a native speaker.",
	},
	{
		Topic:    "localization",
		Keywords: []string{"language version", "hreflang", "language switcher", "localized", "localization"},
		Action:   "Align the language versions so every legal page exists in every offered language.",
	},
}

// BuildActionList derives the deduplicated action list from the verified
// findings. An action appears exactly when at least one finding matches its
// topic keywords; findings outside the catalog contribute nothing.
func BuildActionList(findings []types.Finding) []string {
	actions := make([]string, 0, len(actionCatalog))
	for _, entry := range actionCatalog {
		for _, finding := range findings {
			text := strings.ToLower(finding.Problem + " " + finding.Explanation)
			if containsAny(text, entry.Keywords) {
				actions = append(actions, entry.Action)
				break
			}
		}
	}
	return actions
}

// BuildOverview writes the report overview from the verified findings alone.
// The draft overview from the model is discarded.
func BuildOverview(profile types.CompanyProfile, sections []types.ReportSection) string {
	subject := strings.TrimSpace(profile.Name)
	if subject == "" {
		subject = "the website"
	}

	var total, high, medium int
	affected := make([]string, 0, len(sections))
	for _, section := range sections {
		if len(section.Findings) == 0 {
			continue
		}
		affected = append(affected, section.Title)
		for _, finding := range section.Findings {
			total++
			switch finding.Severity {
			case types.SeverityHigh:
				high++
			case types.SeverityMedium:
				medium++
			}
		}
	}

	if total == 0 {
		return fmt.Sprintf("The audit of %s found no significant issues.", subject)
	}

	summary := fmt.Sprintf("The audit of %s identified %d %s across %s.",
		subject, total, pluralize(total, "issue", "issues"), joinTitles(affected))
	if high > 0 {
		summary += fmt.Sprintf(" %d of them %s high severity and should be addressed first.",
			high, pluralize(high, "is", "are"))
	} else if medium > 0 {
		summary += " The most serious findings are of medium severity."
	}
	return summary
}

// BuildConclusion writes the closing paragraph from the verified findings.
func BuildConclusion(findings []types.Finding) string {
	var high, rest int
	for _, finding := range findings {
		if finding.Severity == types.SeverityHigh {
			high++
		} else {
			rest++
		}
	}
	switch {
	case high > 0:
		return "The site currently has gaps that expose the operator to legal risk. Resolve the high severity findings first, then work through the remaining recommendations."
	case rest > 0:
		return "The site covers the legal basics. The remaining findings are quality improvements worth scheduling."
	default:
		return "No significant issues were found. Keep the legal pages current as the site evolves."
	}
}

func joinTitles(titles []string) string {
	switch len(titles) {
	case 0:
		return "the audited areas"
	case 1:
		return titles[0]
	case 2:
		return titles[0] + " and " + titles[1]
	default:
		return strings.Join(titles[:len(titles)-1], ", ") + " and " + titles[len(titles)-1]
	}
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

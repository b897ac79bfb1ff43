// Package analysis fans one audit out to the specialized analysis tasks and
// collects their raw outputs.
package analysis

import "github.com/jonathan/site-auditor/internal/llm"

// Task names double as keys in the results map and in the job's raw cache.
const (
	TaskLegalCompliance    = "legal_compliance"
	TaskConsumerRights     = "consumer_rights"
	TaskPrivacy            = "privacy"
	TaskCompanyProfile     = "company_profile"
	TaskLocalization       = "localization_structure"
	TaskTranslationQuality = "translation_quality"
)

// Unavailable is the sentinel recorded for a task that failed or panicked.
// The report compiler treats it as "this analysis produced nothing".
const Unavailable = "analysis unavailable"

// Task describes one specialized audit analysis.
type Task struct {
	// Name identifies the task in results and caches.
	Name string

	// PromptKey is the system instruction key in analysis.json.
	PromptKey string

	// Query is the retrieval query used to pull supporting chunks from the
	// job's knowledge base.
	Query string

	// Tier selects the model class for the task.
	Tier llm.ModelTier
}

// Roster returns the fixed task set in stable order.
func Roster() []Task {
	return []Task{
		{
			Name:      TaskLegalCompliance,
			PromptKey: "legal-compliance-system",
			Query:     "impressum imprint legal notice terms conditions agb voorwaarden widerruf withdrawal",
			Tier:      llm.TierStandard,
		},
		{
			Name:      TaskConsumerRights,
			PromptKey: "consumer-rights-system",
			Query:     "shipping costs delivery payment methods returns refund versand zahlung verzending",
			Tier:      llm.TierStandard,
		},
		{
			Name:      TaskPrivacy,
			PromptKey: "privacy-system",
			Query:     "privacy policy datenschutz privacybeleid cookies tracking analytics personal data",
			Tier:      llm.TierStandard,
		},
		{
			Name:      TaskCompanyProfile,
			PromptKey: "company-profile-system",
			Query:     "about company products services team history über uns over ons",
			Tier:      llm.TierLite,
		},
		{
			Name:      TaskLocalization,
			PromptKey: "localization-structure-system",
			Query:     "language versions english german dutch translation navigation",
			Tier:      llm.TierStandard,
		},
		{
			Name:      TaskTranslationQuality,
			PromptKey: "translation-quality-system",
			Query:     "product descriptions text content pages",
			Tier:      llm.TierStandard,
		},
	}
}

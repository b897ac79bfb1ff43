// Package llm - config.go holds model selection and call policy for the client.
package llm

import "time"

// ModelTier selects the quality/cost class used for a call. Page-level and
// extraction work runs on the lite tier, analysis tasks on the standard
// tier, and report consolidation on the advanced tier.
type ModelTier string

const (
	TierLite     ModelTier = "lite"
	TierStandard ModelTier = "standard"
	TierAdvanced ModelTier = "advanced"
)

// Config controls which models the client uses and how it retries.
type Config struct {
	// Models maps each tier to a concrete model name.
	Models map[ModelTier]string

	// EmbeddingModel is the model used for Embed calls.
	EmbeddingModel string

	// MaxRetries is the number of additional attempts after the first
	// failed call. Only rate-limit, server, and timeout errors are retried.
	MaxRetries int

	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration

	// CallTimeout bounds each individual attempt, not the whole call.
	CallTimeout time.Duration
}

// DefaultConfig returns the production call policy.
func DefaultConfig() Config {
	return Config{
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		EmbeddingModel: "text-embedding-004",
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
		CallTimeout:    60 * time.Second,
	}
}

// ModelFor resolves a tier to a model name, falling back to the standard
// tier for unknown values.
func (c Config) ModelFor(tier ModelTier) string {
	if name, ok := c.Models[tier]; ok && name != "" {
		return name
	}
	return c.Models[TierStandard]
}

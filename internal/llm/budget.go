// Package llm - budget.go throttles provider traffic against a shared
// per-minute token allowance.
package llm

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// budgetFraction is the share of the per-minute allowance handed out before
// callers block until the window rolls over. Staying under the hard quota
// leaves headroom for estimation error.
const budgetFraction = 0.8

// Default limiter settings, sized for the provider's entry paid tier.
const (
	DefaultTokensPerMinute = 250000
	DefaultMinSpacing      = 2 * time.Second
)

// EstimateTokens approximates the token count of text with a four
// characters per token heuristic.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// TokenBudget is a sliding-window token limiter shared by every component
// that talks to the provider. Acquire blocks while the current window is
// saturated and additionally enforces a minimum spacing between calls so
// bursts of small requests do not trip per-second quotas.
type TokenBudget struct {
	perMinute int
	spacing   *rate.Limiter

	mu          sync.Mutex
	used        int
	windowStart time.Time
}

// NewTokenBudget builds a limiter for the given per-minute token allowance.
// minSpacing of zero disables inter-call spacing.
func NewTokenBudget(tokensPerMinute int, minSpacing time.Duration) *TokenBudget {
	b := &TokenBudget{
		perMinute:   tokensPerMinute,
		windowStart: time.Now(),
	}
	if minSpacing > 0 {
		b.spacing = rate.NewLimiter(rate.Every(minSpacing), 1)
	}
	return b
}

// Acquire reserves estimatedTokens from the current window, blocking until
// the window rolls over when the budget is saturated. A nil budget admits
// every call immediately.
func (b *TokenBudget) Acquire(ctx context.Context, estimatedTokens int) error {
	if b == nil {
		return nil
	}
	for {
		b.mu.Lock()
		now := time.Now()
		if now.Sub(b.windowStart) >= time.Minute {
			b.windowStart = now
			b.used = 0
		}
		threshold := int(float64(b.perMinute) * budgetFraction)
		// An empty window always admits the caller, even when the request
		// alone exceeds the threshold. Otherwise oversized prompts would
		// block forever.
		if b.used == 0 || b.used < threshold {
			b.used += estimatedTokens
			b.mu.Unlock()
			break
		}
		wait := time.Until(b.windowStart.Add(time.Minute))
		b.mu.Unlock()
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if b.spacing != nil {
		return b.spacing.Wait(ctx)
	}
	return nil
}

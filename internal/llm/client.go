// Package llm provides the completion and embedding client used by the
// analysis stages. All provider traffic flows through a shared TokenBudget
// so concurrent audits cannot exhaust the per-minute quota.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/jonathan/site-auditor/internal/telemetry"
)

// Message is a single conversational turn sent to the model. Role is
// "user" or "model"; an empty role defaults to "user".
type Message struct {
	Role    string
	Content string
}

// CompletionRequest describes one completion call.
type CompletionRequest struct {
	// System is the system instruction, empty for none.
	System string

	// Messages is the conversation so far. The last message is sent as the
	// new turn; everything before it becomes chat history.
	Messages []Message

	// Tier selects the model class. The zero value resolves to the
	// standard tier.
	Tier ModelTier

	// JSONOutput asks the model for a JSON response body.
	JSONOutput bool

	Temperature float32
	MaxTokens   int32
}

// Client is the narrow surface the rest of the system uses to talk to the
// model provider. Implementations must be safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	Close() error
}

// GeminiClient implements Client on top of the Gemini API.
type GeminiClient struct {
	client *genai.Client
	config Config
	budget *TokenBudget
	logger *zap.Logger
}

// NewGeminiClient creates a client with the given call policy. budget may
// be nil, in which case calls are not throttled.
func NewGeminiClient(ctx context.Context, apiKey string, config Config, budget *TokenBudget, logger *zap.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("llm: create client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiClient{client: client, config: config, budget: budget, logger: logger}, nil
}

// Complete runs one completion call with bounded retries. The returned text
// has code-fence wrapping stripped. Failures surface as typed errors, never
// as an empty string with a nil error.
func (g *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", &MalformedOutputError{Message: "completion request has no messages"}
	}
	if err := g.budget.Acquire(ctx, estimateRequestTokens(req)); err != nil {
		return "", err
	}

	model := g.client.GenerativeModel(g.config.ModelFor(req.Tier))
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}
	if req.JSONOutput {
		model.ResponseMIMEType = "application/json"
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	session := model.StartChat()
	history, last := splitHistory(req.Messages)
	session.History = history

	var lastErr error
	for attempt := 0; attempt <= g.config.MaxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("retrying completion call",
				zap.Int("attempt", attempt),
				zap.String("model", g.config.ModelFor(req.Tier)),
				zap.Error(lastErr))
			if err := g.pause(ctx); err != nil {
				return "", err
			}
		}
		text, err := g.send(ctx, session, last)
		if err == nil {
			return CleanJSONBlock(text), nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return "", classify(lastErr)
}

// Embed returns the embedding vector for text, with the same retry policy
// as Complete.
func (g *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &MalformedOutputError{Message: "embedding input is empty"}
	}
	if err := g.budget.Acquire(ctx, EstimateTokens(text)); err != nil {
		return nil, err
	}

	model := g.client.EmbeddingModel(g.config.EmbeddingModel)

	var lastErr error
	for attempt := 0; attempt <= g.config.MaxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("retrying embedding call",
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			if err := g.pause(ctx); err != nil {
				return nil, err
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, g.config.CallTimeout)
		telemetry.EmbeddingCalls.Inc()
		resp, err := model.EmbedContent(callCtx, genai.Text(text))
		cancel()
		if err == nil {
			if resp == nil || resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
				return nil, &MalformedOutputError{Message: "embedding response contained no values"}
			}
			return resp.Embedding.Values, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return nil, classify(lastErr)
}

// Close releases the underlying API connection.
func (g *GeminiClient) Close() error {
	return g.client.Close()
}

func (g *GeminiClient) send(ctx context.Context, session *genai.ChatSession, last string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.config.CallTimeout)
	defer cancel()
	telemetry.CompletionCalls.Inc()
	resp, err := session.SendMessage(callCtx, genai.Text(last))
	if err != nil {
		return "", err
	}
	return extractText(resp)
}

func (g *GeminiClient) pause(ctx context.Context) error {
	timer := time.NewTimer(g.config.RetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// splitHistory converts messages into chat history plus the final turn to send.
func splitHistory(messages []Message) ([]*genai.Content, string) {
	last := messages[len(messages)-1].Content
	history := make([]*genai.Content, 0, len(messages)-1)
	for _, m := range messages[:len(messages)-1] {
		role := m.Role
		if role == "" {
			role = "user"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return history, last
}

// extractText pulls the text parts out of a response, rejecting empty or
// blocked candidates.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &MalformedOutputError{Message: "response contained no candidates"}
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", &MalformedOutputError{
			Message: fmt.Sprintf("candidate has no content (finish reason %v)", candidate.FinishReason),
		}
	}
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", &MalformedOutputError{Message: "candidate contained no text parts"}
	}
	return out, nil
}

func estimateRequestTokens(req CompletionRequest) int {
	total := EstimateTokens(req.System)
	for _, m := range req.Messages {
		total += EstimateTokens(m.Content)
	}
	return total
}

// retryable reports whether an error is worth another attempt: provider
// rate limits, server errors, and per-attempt timeouts.
func retryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// classify wraps a final error into the typed error callers branch on.
func classify(err error) error {
	var rateErr *RateLimitedError
	var timeoutErr *TimeoutError
	var malformedErr *MalformedOutputError
	if errors.As(err, &rateErr) || errors.As(err, &timeoutErr) || errors.As(err, &malformedErr) {
		return err
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return &RateLimitedError{Message: "quota exhausted after retries", Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Message: "attempt deadline exceeded after retries", Cause: err}
	}
	return fmt.Errorf("llm: call failed: %w", err)
}

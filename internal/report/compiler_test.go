package report

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathan/site-auditor/internal/analysis"
	"github.com/jonathan/site-auditor/internal/llm"
	"github.com/jonathan/site-auditor/internal/types"
)

type mockLLMClient struct {
	completeFunc func(ctx context.Context, req llm.CompletionRequest) (string, error)
}

func (m *mockLLMClient) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	return m.completeFunc(ctx, req)
}

func (m *mockLLMClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func (m *mockLLMClient) Close() error { return nil }

func testTaskResults() map[string]string {
	return map[string]string{
		analysis.TaskCompanyProfile:     "Acme GmbH sells household goods.",
		analysis.TaskLegalCompliance:    "The imprint could not be located anywhere on the site.",
		analysis.TaskConsumerRights:     "Withdrawal policy appears complete.",
		analysis.TaskPrivacy:            "Privacy policy mentions GDPR rights.",
		analysis.TaskLocalization:       "German and English versions exist.",
		analysis.TaskTranslationQuality: "English wording is awkward in places.",
	}
}

func findingJSON(problem, severity string, confidence float64) string {
	return fmt.Sprintf(`{"problem": %q, "explanation": "", "recommendation": "", "severity": %q, "confidence": %g}`,
		problem, severity, confidence)
}

func draftJSON(legalFindings, translationFindings string) string {
	return fmt.Sprintf(`{
		"overview": "MODEL OVERVIEW",
		"company_profile": {"name": "Acme GmbH", "industry": "retail", "summary": "Sells household goods."},
		"sections": [
			{"title": "Legal Compliance", "findings": [%s]},
			{"title": "Consumer Rights", "findings": []},
			{"title": "Privacy", "findings": []},
			{"title": "Localization", "findings": []},
			{"title": "Translation Quality", "findings": [%s]}
		],
		"action_list": ["MODEL ACTION"],
		"conclusion": "MODEL CONCLUSION"
	}`, legalFindings, translationFindings)
}

func TestCompileHappyPath(t *testing.T) {
	response := draftJSON(
		findingJSON("The website has no imprint page", "high", 0.9),
		findingJSON("Awkward grammar in the English product descriptions", "low", 0.8),
	)
	client := &mockLLMClient{
		completeFunc: func(ctx context.Context, req llm.CompletionRequest) (string, error) {
			return response, nil
		},
	}
	compiler := NewCompiler(client, 0, zap.NewNop())

	pages := []types.Page{
		{URL: "https://example.com", Title: "Home", Content: "Welcome to our garden furniture shop."},
	}

	report, err := compiler.Compile(context.Background(), "https://example.com", testTaskResults(), pages)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, "Acme GmbH", report.CompanyProfile.Name)
	assert.Equal(t, 2, report.IssueCount)
	assert.Len(t, report.Sections, 5)

	// Sections: 75, 100, 100, 100, 96 average to 94.
	assert.Equal(t, 94, report.Score)

	require.Len(t, report.ActionList, 2)
	assert.Contains(t, report.ActionList[0], "imprint")

	// Narrative comes from the deterministic builders, not the model draft.
	assert.NotContains(t, report.Overview, "MODEL")
	assert.NotContains(t, report.Conclusion, "MODEL")
	assert.NotContains(t, report.ActionList[0], "MODEL")
	assert.Contains(t, report.Overview, "Acme GmbH")
	assert.Contains(t, report.Conclusion, "legal risk")
}

func TestCompileDropsLowConfidenceFindings(t *testing.T) {
	response := draftJSON(
		findingJSON("Terms might be incomplete", "medium", 0.2),
		findingJSON("Literal translation of idioms", "low", 0.1),
	)
	client := &mockLLMClient{
		completeFunc: func(ctx context.Context, req llm.CompletionRequest) (string, error) {
			return response, nil
		},
	}
	compiler := NewCompiler(client, 0.5, zap.NewNop())

	report, err := compiler.Compile(context.Background(), "https://example.com", testTaskResults(), nil)
	require.NoError(t, err)

	// The legal finding is below threshold; the translation finding is
	// exempt despite its even lower confidence.
	assert.Equal(t, 1, report.IssueCount)
	require.Len(t, report.Sections, 5)
	assert.Empty(t, report.Sections[0].Findings)
	require.Len(t, report.Sections[4].Findings, 1)
	assert.Equal(t, "Literal translation of idioms", report.Sections[4].Findings[0].Problem)
}

func TestCompileVerificationDropsContradictedFindings(t *testing.T) {
	response := draftJSON(
		findingJSON("No imprint found on the website", "high", 0.95),
		"",
	)
	client := &mockLLMClient{
		completeFunc: func(ctx context.Context, req llm.CompletionRequest) (string, error) {
			return response, nil
		},
	}
	compiler := NewCompiler(client, 0, zap.NewNop())

	pages := []types.Page{
		{URL: "https://example.com/impressum", Title: "Impressum", Content: "Angaben gemäß § 5 TMG: Acme GmbH", Type: types.PageTypeLegal},
	}

	report, err := compiler.Compile(context.Background(), "https://example.com", testTaskResults(), pages)
	require.NoError(t, err)

	assert.Equal(t, 0, report.IssueCount)
	assert.Equal(t, 100, report.Score)
	assert.Empty(t, report.ActionList)
	assert.Contains(t, report.Overview, "no significant issues")
}

func TestCompileFallbackOnCallFailure(t *testing.T) {
	client := &mockLLMClient{
		completeFunc: func(ctx context.Context, req llm.CompletionRequest) (string, error) {
			return "", &llm.RateLimitedError{Message: "quota exhausted"}
		},
	}
	compiler := NewCompiler(client, 0, zap.NewNop())

	report, err := compiler.Compile(context.Background(), "https://example.com", testTaskResults(), nil)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, fallbackScore, report.Score)
	require.Len(t, report.Sections, 1)
	assert.Equal(t, "Legal Compliance", report.Sections[0].Title)
	require.Len(t, report.Sections[0].Findings, 1)
	assert.Contains(t, report.Sections[0].Findings[0].Explanation, "imprint could not be located")
}

func TestCompileFallbackOnSchemaViolation(t *testing.T) {
	client := &mockLLMClient{
		completeFunc: func(ctx context.Context, req llm.CompletionRequest) (string, error) {
			return `{"overview": "only an overview"}`, nil
		},
	}
	compiler := NewCompiler(client, 0, zap.NewNop())

	report, err := compiler.Compile(context.Background(), "https://example.com", testTaskResults(), nil)
	require.NoError(t, err)
	assert.Equal(t, fallbackScore, report.Score)
	assert.Equal(t, 1, report.IssueCount)
}

func TestCompileFallbackWithoutLegalText(t *testing.T) {
	client := &mockLLMClient{
		completeFunc: func(ctx context.Context, req llm.CompletionRequest) (string, error) {
			return "", errors.New("boom")
		},
	}
	compiler := NewCompiler(client, 0, zap.NewNop())

	report, err := compiler.Compile(context.Background(), "https://example.com", map[string]string{}, nil)
	require.NoError(t, err)
	require.Len(t, report.Sections, 1)
	assert.Contains(t, report.Sections[0].Findings[0].Explanation, "did not produce usable output")
}

func TestCompileStripsMarkdownFences(t *testing.T) {
	response := "```json\n" + draftJSON("", "") + "\n```"
	client := &mockLLMClient{
		completeFunc: func(ctx context.Context, req llm.CompletionRequest) (string, error) {
			return response, nil
		},
	}
	compiler := NewCompiler(client, 0, zap.NewNop())

	report, err := compiler.Compile(context.Background(), "https://example.com", testTaskResults(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.IssueCount)
	assert.Equal(t, 100, report.Score)
}

func TestCompileSendsAllTaskOutputs(t *testing.T) {
	var captured llm.CompletionRequest
	client := &mockLLMClient{
		completeFunc: func(ctx context.Context, req llm.CompletionRequest) (string, error) {
			captured = req
			return draftJSON("", ""), nil
		},
	}
	compiler := NewCompiler(client, 0, zap.NewNop())

	_, err := compiler.Compile(context.Background(), "https://example.com", testTaskResults(), nil)
	require.NoError(t, err)

	assert.True(t, captured.JSONOutput)
	assert.Equal(t, llm.TierAdvanced, captured.Tier)
	assert.Contains(t, captured.System, `"severity"`)

	require.Len(t, captured.Messages, 1)
	user := captured.Messages[0].Content
	for _, text := range testTaskResults() {
		assert.Contains(t, user, text)
	}
	assert.Contains(t, user, "https://example.com")
}

func TestCompileMarksMissingTaskResultsUnavailable(t *testing.T) {
	var user string
	client := &mockLLMClient{
		completeFunc: func(ctx context.Context, req llm.CompletionRequest) (string, error) {
			user = req.Messages[0].Content
			return draftJSON("", ""), nil
		},
	}
	compiler := NewCompiler(client, 0, zap.NewNop())

	results := testTaskResults()
	delete(results, analysis.TaskPrivacy)

	_, err := compiler.Compile(context.Background(), "https://example.com", results, nil)
	require.NoError(t, err)
	assert.Contains(t, user, analysis.Unavailable)
}

func TestFallbackExplanationIsClamped(t *testing.T) {
	long := make([]rune, 6000)
	for i := range long {
		long[i] = 'x'
	}
	results := map[string]string{analysis.TaskLegalCompliance: string(long)}

	client := &mockLLMClient{
		completeFunc: func(ctx context.Context, req llm.CompletionRequest) (string, error) {
			return "", errors.New("boom")
		},
	}
	compiler := NewCompiler(client, 0, zap.NewNop())

	report, err := compiler.Compile(context.Background(), "https://example.com", results, nil)
	require.NoError(t, err)
	assert.Len(t, []rune(report.Sections[0].Findings[0].Explanation), 4000)
}

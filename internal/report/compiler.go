// Package report turns the raw analysis outputs into the final audit
// report. The model consolidates the findings; everything the user acts on
// afterwards (verification, scoring, actions, narrative) is computed
// deterministically from the verified finding set.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/site-auditor/internal/analysis"
	"github.com/jonathan/site-auditor/internal/llm"
	"github.com/jonathan/site-auditor/internal/prompts"
	"github.com/jonathan/site-auditor/internal/schemas"
	"github.com/jonathan/site-auditor/internal/types"
)

// DefaultConfidenceThreshold drops findings the consolidation model itself
// was unsure about.
const DefaultConfidenceThreshold = 0.5

// fallbackScore is the fixed score of a degraded report.
const fallbackScore = 40

// Compiler consolidates per-task analysis outputs into a types.Report.
type Compiler struct {
	client              llm.Client
	confidenceThreshold float64
	logger              *zap.Logger
}

// NewCompiler returns a Compiler. A non-positive threshold falls back to
// DefaultConfidenceThreshold.
func NewCompiler(client llm.Client, confidenceThreshold float64, logger *zap.Logger) *Compiler {
	if confidenceThreshold <= 0 {
		confidenceThreshold = DefaultConfidenceThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{
		client:              client,
		confidenceThreshold: confidenceThreshold,
		logger:              logger,
	}
}

// draftReport mirrors the JSON shape in schemas/report_schema.json.
type draftReport struct {
	Overview       string         `json:"overview"`
	CompanyProfile draftProfile   `json:"company_profile"`
	Sections       []draftSection `json:"sections"`
	ActionList     []string       `json:"action_list"`
	Conclusion     string         `json:"conclusion"`
}

type draftProfile struct {
	Name     string `json:"name"`
	Industry string `json:"industry"`
	Summary  string `json:"summary"`
}

type draftSection struct {
	Title    string         `json:"title"`
	Findings []draftFinding `json:"findings"`
}

type draftFinding struct {
	Problem        string  `json:"problem"`
	Explanation    string  `json:"explanation"`
	Recommendation string  `json:"recommendation"`
	Severity       string  `json:"severity"`
	SourceURL      string  `json:"source_url"`
	Snippet        string  `json:"snippet"`
	Confidence     float64 `json:"confidence"`
}

func (df draftFinding) toFinding() types.Finding {
	return types.Finding{
		Problem:        strings.TrimSpace(df.Problem),
		Explanation:    strings.TrimSpace(df.Explanation),
		Recommendation: strings.TrimSpace(df.Recommendation),
		Severity:       types.ParseSeverity(df.Severity),
		SourceURL:      df.SourceURL,
		Snippet:        df.Snippet,
		Confidence:     df.Confidence,
	}
}

// Compile turns the per-task analysis outputs into the final report. The
// crawled pages serve as the evidence corpus for the verification pass.
// When the consolidation call fails or returns unusable JSON, Compile
// degrades to a minimal fallback report instead of failing the audit.
func (c *Compiler) Compile(ctx context.Context, siteURL string, taskResults map[string]string, pages []types.Page) (*types.Report, error) {
	draft, err := c.consolidate(ctx, siteURL, taskResults)
	if err != nil {
		c.logger.Error("report consolidation failed, building fallback report", zap.Error(err))
		return c.fallbackReport(siteURL, taskResults), nil
	}

	corpus := corpusText(pages)

	var droppedConfidence, droppedContradicted int
	sections := make([]types.ReportSection, 0, len(draft.Sections))
	for _, ds := range draft.Sections {
		exempt := isTranslationSection(ds.Title)
		findings := make([]types.Finding, 0, len(ds.Findings))
		for _, df := range ds.Findings {
			finding := df.toFinding()
			if finding.Problem == "" {
				continue
			}
			if !exempt && finding.Confidence < c.confidenceThreshold {
				droppedConfidence++
				continue
			}
			findings = append(findings, finding)
		}
		if !exempt {
			before := len(findings)
			findings = VerifyFindings(findings, corpus, c.logger)
			droppedContradicted += before - len(findings)
		}
		sections = append(sections, types.ReportSection{Title: ds.Title, Findings: findings})
	}

	report := &types.Report{
		CompanyProfile: types.CompanyProfile{
			Name:     strings.TrimSpace(draft.CompanyProfile.Name),
			Industry: strings.TrimSpace(draft.CompanyProfile.Industry),
			Summary:  strings.TrimSpace(draft.CompanyProfile.Summary),
		},
		Sections: sections,
	}

	findings := report.AllFindings()
	report.IssueCount = len(findings)
	report.Score = OverallScore(sections)
	report.ActionList = BuildActionList(findings)
	report.Overview = BuildOverview(report.CompanyProfile, sections)
	report.Conclusion = BuildConclusion(findings)

	c.logger.Info("report compiled",
		zap.Int("sections", len(sections)),
		zap.Int("findings", report.IssueCount),
		zap.Int("dropped_low_confidence", droppedConfidence),
		zap.Int("dropped_contradicted", droppedContradicted),
		zap.Int("score", report.Score))

	return report, nil
}

func (c *Compiler) consolidate(ctx context.Context, siteURL string, taskResults map[string]string) (*draftReport, error) {
	system := prompts.MustGet("report.json", "consolidate-system") +
		"\n\nThe report must match this JSON schema:\n" + schemas.Report()
	user := prompts.Format(prompts.MustGet("report.json", "consolidate-user"), map[string]string{
		"SiteURL":            siteURL,
		"CompanyProfile":     taskResult(taskResults, analysis.TaskCompanyProfile),
		"LegalCompliance":    taskResult(taskResults, analysis.TaskLegalCompliance),
		"ConsumerRights":     taskResult(taskResults, analysis.TaskConsumerRights),
		"Privacy":            taskResult(taskResults, analysis.TaskPrivacy),
		"Localization":       taskResult(taskResults, analysis.TaskLocalization),
		"TranslationQuality": taskResult(taskResults, analysis.TaskTranslationQuality),
	})

	text, err := c.client.Complete(ctx, llm.CompletionRequest{
		System:      system,
		Messages:    []llm.Message{{Role: "user", Content: user}},
		Tier:        llm.TierAdvanced,
		JSONOutput:  true,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("consolidation call: %w", err)
	}

	cleaned := llm.CleanJSONBlock(text)
	if err := schemas.ValidateReport(cleaned); err != nil {
		return nil, &llm.MalformedOutputError{Message: "consolidated report failed schema validation", Cause: err}
	}

	var draft draftReport
	if err := json.Unmarshal([]byte(cleaned), &draft); err != nil {
		return nil, &llm.MalformedOutputError{Message: "consolidated report is not valid JSON", Cause: err}
	}
	return &draft, nil
}

// fallbackReport wraps the raw legal analysis text into a single-section
// report so the audit still ends with something readable.
func (c *Compiler) fallbackReport(siteURL string, taskResults map[string]string) *types.Report {
	explanation := strings.TrimSpace(taskResult(taskResults, analysis.TaskLegalCompliance))
	if explanation == "" || explanation == analysis.Unavailable {
		explanation = "The analyses did not produce usable output."
	}

	finding := types.Finding{
		Problem:        "Automated report consolidation failed",
		Explanation:    clampText(explanation, 4000),
		Recommendation: "Re-run the audit to obtain a fully structured report.",
		Severity:       types.SeverityInfo,
		SourceURL:      siteURL,
		Confidence:     1,
	}

	return &types.Report{
		Overview:   "The structured report could not be compiled. The raw legal compliance analysis is included below.",
		Sections:   []types.ReportSection{{Title: "Legal Compliance", Findings: []types.Finding{finding}}},
		ActionList: []string{"Re-run the audit to obtain a fully structured report."},
		Conclusion: "This is a degraded report. Treat the score as a placeholder, not an assessment.",
		Score:      fallbackScore,
		IssueCount: 1,
	}
}

func taskResult(results map[string]string, name string) string {
	if text, ok := results[name]; ok && strings.TrimSpace(text) != "" {
		return text
	}
	return analysis.Unavailable
}

// isTranslationSection identifies the section whose findings skip both the
// confidence filter and the verification pass.
func isTranslationSection(title string) bool {
	return strings.Contains(strings.ToLower(title), "translation")
}

// corpusText joins every crawled page into one searchable blob.
func corpusText(pages []types.Page) string {
	var sb strings.Builder
	for _, page := range pages {
		sb.WriteString(page.Title)
		sb.WriteString("\n")
		sb.WriteString(page.Content)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func clampText(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

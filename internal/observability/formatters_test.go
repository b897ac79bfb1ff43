package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/site-auditor/internal/types"
)

func TestPrintCrawlSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	result := &types.CrawlResult{
		Pages: []types.Page{
			{URL: "https://example.com", Type: types.PageTypeGeneral},
			{URL: "https://example.com/impressum", Type: types.PageTypeLegal},
			{URL: "https://example.com/contact", Type: types.PageTypeContact},
		},
		Contact: types.Contact{Email: "info@example.com"},
		Translation: types.TranslationSignals{
			Languages: []string{"de", "en"},
		},
	}

	p.PrintCrawlSummary(result)
	output := buf.String()

	assert.Contains(t, output, "CRAWLED SITE CONTENT")
	assert.Contains(t, output, "Pages fetched: 3")
	assert.Contains(t, output, "Legal pages:   1")
	assert.Contains(t, output, "info@example.com")
	assert.Contains(t, output, "de, en")
	assert.Contains(t, output, "https://example.com/impressum")
}

func TestPrintCrawlSummary_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintCrawlSummary(nil)

	assert.Empty(t, buf.String())
}

func TestPrintCrawlSummary_TruncatesLongPageList(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	result := &types.CrawlResult{}
	for i := 0; i < 8; i++ {
		result.Pages = append(result.Pages, types.Page{
			URL:  "https://example.com/page",
			Type: types.PageTypeGeneral,
		})
	}

	p.PrintCrawlSummary(result)
	output := buf.String()

	assert.Contains(t, output, "... and 3 more pages")
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	report := &types.Report{
		Overview: "The shop has several legal gaps.",
		CompanyProfile: types.CompanyProfile{
			Name: "Example GmbH",
		},
		Sections: []types.ReportSection{
			{
				Title: "Legal Compliance",
				Findings: []types.Finding{
					{Problem: "Missing withdrawal policy", Severity: types.SeverityHigh},
					{Problem: "Imprint lacks a phone number", Severity: types.SeverityMedium},
				},
			},
			{
				Title: "Content Quality",
				Findings: []types.Finding{
					{Problem: "Thin product descriptions", Severity: types.SeverityLow},
				},
			},
		},
		Score:      64,
		IssueCount: 3,
	}

	p.PrintReport(report)
	output := buf.String()

	assert.Contains(t, output, "AUDIT REPORT")
	assert.Contains(t, output, "Score:    64/100")
	assert.Contains(t, output, "Findings: 3")
	assert.Contains(t, output, "Example GmbH")
	assert.Contains(t, output, "Legal Compliance (2)")
	assert.Contains(t, output, "✗ Missing withdrawal policy")
	assert.Contains(t, output, "⚠ Imprint lacks a phone number")
	assert.Contains(t, output, "Content Quality (1)")
}

func TestPrintReport_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintReport(nil)

	assert.Empty(t, buf.String())
}

func TestPrintActionList(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintActionList([]string{
		"Add a withdrawal policy page",
		"Publish the company register number",
	})
	output := buf.String()

	assert.Contains(t, output, "ACTION LIST")
	assert.Contains(t, output, "1. Add a withdrawal policy page")
	assert.Contains(t, output, "2. Publish the company register number")
}

func TestPrintActionList_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintActionList(nil)

	assert.Contains(t, buf.String(), "NO ACTIONS REQUIRED")
}

func TestPrintKeywords(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintKeywords([]types.Keyword{
		{Keyword: "garden furniture", Relevance: 0.92},
		{Keyword: "teak table", Relevance: 0.75},
	})
	output := buf.String()

	assert.Contains(t, output, "DISCOVERED KEYWORDS")
	assert.Contains(t, output, "garden furniture")
	assert.Contains(t, output, "0.92")
	assert.Contains(t, output, "teak table")
}

func TestPrintKeywords_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintKeywords(nil)

	assert.Contains(t, buf.String(), "No keywords found")
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintStatus(types.StatusEvent{Message: "3/10 analyses complete", Status: types.EventProcessing})

	assert.Equal(t, "→ 3/10 analyses complete\n", buf.String())
}

func TestPrintBoxTruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintActionList([]string{strings.Repeat("x", 80)})
	output := buf.String()

	for _, line := range strings.Split(output, "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
}

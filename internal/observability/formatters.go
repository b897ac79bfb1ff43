// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/site-auditor/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintStatus writes one progress line for a status update.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintStatus(event types.StatusEvent) {
	fmt.Fprintf(p.out, "→ %s\n", event.Message)
}

// PrintCrawlSummary outputs what the crawl collected before analysis starts.
func (p *Printer) PrintCrawlSummary(result *types.CrawlResult) {
	if result == nil || len(result.Pages) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Pages fetched: %d\n", len(result.Pages)))
	sb.WriteString(fmt.Sprintf("Legal pages:   %d\n", len(result.LegalPages())))
	if result.Contact.Email != "" {
		sb.WriteString(fmt.Sprintf("Contact email: %s\n", result.Contact.Email))
	}
	if result.Contact.Phone != "" {
		sb.WriteString(fmt.Sprintf("Contact phone: %s\n", result.Contact.Phone))
	}
	if len(result.Translation.Languages) > 0 {
		sb.WriteString(fmt.Sprintf("Languages:     %s\n", strings.Join(result.Translation.Languages, ", ")))
	}
	sb.WriteString("\n")

	count := min(len(result.Pages), maxItemsToShow)
	for i := 0; i < count; i++ {
		url := result.Pages[i].URL
		if len(url) > 50 {
			url = url[:47] + "..."
		}
		sb.WriteString(fmt.Sprintf("• %s\n", url))
	}
	if len(result.Pages) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more pages\n", len(result.Pages)-maxItemsToShow))
	}

	p.printBox("CRAWLED SITE CONTENT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintReport outputs the compiled audit report with its top findings per
// section.
func (p *Printer) PrintReport(report *types.Report) {
	if report == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Score:    %d/100\n", report.Score))
	sb.WriteString(fmt.Sprintf("Findings: %d\n", report.IssueCount))
	if report.CompanyProfile.Name != "" {
		sb.WriteString(fmt.Sprintf("Company:  %s\n", report.CompanyProfile.Name))
	}

	for _, section := range report.Sections {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s (%d)\n", section.Title, len(section.Findings)))
		count := min(len(section.Findings), 3)
		for i := 0; i < count; i++ {
			finding := section.Findings[i]
			problem := finding.Problem
			if len(problem) > 45 {
				problem = problem[:42] + "..."
			}
			sb.WriteString(fmt.Sprintf("  %s %s\n", severityMarker(finding.Severity), problem))
		}
		if len(section.Findings) > 3 {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(section.Findings)-3))
		}
	}

	p.printBox("AUDIT REPORT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintActionList outputs the prioritized fix list.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintActionList(actions []string) {
	if len(actions) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "✅ NO ACTIONS REQUIRED")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	count := min(len(actions), maxItemsToShow)
	for i := 0; i < count; i++ {
		action := actions[i]
		if len(action) > 50 {
			action = action[:47] + "..."
		}
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, action))
	}
	if len(actions) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more actions\n", len(actions)-maxItemsToShow))
	}

	p.printBox("ACTION LIST", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintKeywords outputs discovered keywords with their relevance.
func (p *Printer) PrintKeywords(found []types.Keyword) {
	if len(found) == 0 {
		p.printBox("DISCOVERED KEYWORDS", "No keywords found")
		return
	}

	var sb strings.Builder
	count := min(len(found), 10)
	for i := 0; i < count; i++ {
		keyword := found[i].Keyword
		if len(keyword) > 40 {
			keyword = keyword[:37] + "..."
		}
		sb.WriteString(fmt.Sprintf("• %-42s %.2f\n", keyword, found[i].Relevance))
	}
	if len(found) > 10 {
		sb.WriteString(fmt.Sprintf("... and %d more keywords\n", len(found)-10))
	}

	p.printBox("DISCOVERED KEYWORDS", strings.TrimSuffix(sb.String(), "\n"))
}

func severityMarker(s types.Severity) string {
	switch s {
	case types.SeverityHigh:
		return "✗"
	case types.SeverityMedium:
		return "⚠"
	default:
		return "•"
	}
}

package report

import "github.com/jonathan/site-auditor/internal/types"

// Severity deductions per finding. A section cannot fall below zero and the
// overall score cannot fall below the floor.
const (
	deductionHigh   = 25
	deductionMedium = 10
	deductionLow    = 4

	minOverallScore = 5
)

// SectionScore computes the 0-100 score of one section from its findings.
func SectionScore(findings []types.Finding) int {
	score := 100
	for _, f := range findings {
		switch f.Severity {
		case types.SeverityHigh:
			score -= deductionHigh
		case types.SeverityMedium:
			score -= deductionMedium
		case types.SeverityLow:
			score -= deductionLow
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

// OverallScore averages the section scores, rounded to the nearest integer.
func OverallScore(sections []types.ReportSection) int {
	if len(sections) == 0 {
		return 100
	}
	total := 0
	for _, section := range sections {
		total += SectionScore(section.Findings)
	}
	score := (total + len(sections)/2) / len(sections)
	if score < minOverallScore {
		score = minOverallScore
	}
	return score
}

package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/site-auditor/internal/types"
)

func TestSectionScore(t *testing.T) {
	tests := []struct {
		name     string
		findings []types.Finding
		want     int
	}{
		{"no findings", nil, 100},
		{"one high", []types.Finding{{Severity: types.SeverityHigh}}, 75},
		{"one medium", []types.Finding{{Severity: types.SeverityMedium}}, 90},
		{"one low", []types.Finding{{Severity: types.SeverityLow}}, 96},
		{"info is free", []types.Finding{{Severity: types.SeverityInfo}, {Severity: types.SeverityInfo}}, 100},
		{
			"mixed",
			[]types.Finding{
				{Severity: types.SeverityHigh},
				{Severity: types.SeverityMedium},
				{Severity: types.SeverityLow},
			},
			61,
		},
		{
			"floors at zero",
			[]types.Finding{
				{Severity: types.SeverityHigh},
				{Severity: types.SeverityHigh},
				{Severity: types.SeverityHigh},
				{Severity: types.SeverityHigh},
				{Severity: types.SeverityHigh},
			},
			0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SectionScore(tt.findings))
		})
	}
}

func TestOverallScoreIsMeanOfSections(t *testing.T) {
	sections := []types.ReportSection{
		{Title: "Legal Compliance", Findings: nil},
		{Title: "Privacy", Findings: []types.Finding{
			{Severity: types.SeverityHigh},
			{Severity: types.SeverityHigh},
		}},
	}
	// 100 and 50 average to 75.
	assert.Equal(t, 75, OverallScore(sections))
}

func TestOverallScoreRoundsToNearest(t *testing.T) {
	sections := []types.ReportSection{
		{Findings: nil},
		{Findings: []types.Finding{{Severity: types.SeverityHigh}}},
	}
	// 100 and 75 average to 87.5, rounded up.
	assert.Equal(t, 88, OverallScore(sections))
}

func TestOverallScoreFloor(t *testing.T) {
	manyHighs := make([]types.Finding, 6)
	for i := range manyHighs {
		manyHighs[i] = types.Finding{Severity: types.SeverityHigh}
	}
	sections := []types.ReportSection{
		{Findings: manyHighs},
		{Findings: manyHighs},
	}
	assert.Equal(t, minOverallScore, OverallScore(sections))
}

func TestOverallScoreNoSections(t *testing.T) {
	assert.Equal(t, 100, OverallScore(nil))
}

func TestScoreIsDeterministic(t *testing.T) {
	sections := []types.ReportSection{
		{Findings: []types.Finding{
			{Severity: types.SeverityHigh},
			{Severity: types.SeverityLow},
		}},
		{Findings: []types.Finding{
			{Severity: types.SeverityMedium},
		}},
	}
	first := OverallScore(sections)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, OverallScore(sections))
	}
}

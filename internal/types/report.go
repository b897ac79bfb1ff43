package types

// Severity grades how serious a finding is. It drives the score penalty.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
	SeverityInfo   Severity = "info"
)

// ParseSeverity normalizes a free-form severity string from the model into
// one of the known grades, defaulting to info.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return Severity(s)
	default:
		return SeverityInfo
	}
}

// Finding is one issue inside a report section.
type Finding struct {
	Problem        string   `json:"problem"`
	Explanation    string   `json:"explanation,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	Severity       Severity `json:"severity"`
	SourceURL      string   `json:"source_url,omitempty"`
	Snippet        string   `json:"snippet,omitempty"`
	Confidence     float64  `json:"confidence"`
}

// ReportSection groups findings under a titled area of the audit.
type ReportSection struct {
	Title    string    `json:"title"`
	Findings []Finding `json:"findings"`
}

// CompanyProfile summarizes what the analysis learned about the audited
// company itself.
type CompanyProfile struct {
	Name     string `json:"name,omitempty"`
	Industry string `json:"industry,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// Report is the final compiled audit result. The score is a pure function of
// the verified finding set.
type Report struct {
	Overview       string          `json:"overview"`
	CompanyProfile CompanyProfile  `json:"company_profile"`
	Sections       []ReportSection `json:"sections"`
	ActionList     []string        `json:"action_list"`
	Conclusion     string          `json:"conclusion"`
	Score          int             `json:"score"`
	IssueCount     int             `json:"issue_count"`
}

// AllFindings flattens the section findings in section order.
func (r *Report) AllFindings() []Finding {
	var out []Finding
	for _, s := range r.Sections {
		out = append(out, s.Findings...)
	}
	return out
}

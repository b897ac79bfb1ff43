package types

import (
	"time"

	"github.com/google/uuid"
)

// RawCache holds the reusable intermediate products of one audit run. A
// later audit of the same URL, or a retry of the same job, resumes from
// whatever the cache already contains.
type RawCache struct {
	Pages        []Page             `json:"pages,omitempty"`
	Contact      Contact            `json:"contact"`
	Translation  TranslationSignals `json:"translation_signals"`
	AgentResults map[string]string  `json:"agent_results,omitempty"`
}

// AuditJob is the persistent record of one audit. The raw cache is heavy
// and never serialized into API responses.
type AuditJob struct {
	ID            uuid.UUID  `json:"id"`
	SiteURL       string     `json:"site_url"`
	UserID        string     `json:"user_id,omitempty"`
	Status        JobStatus  `json:"status"`
	StatusMessage string     `json:"status_message,omitempty"`
	Public        bool       `json:"public"`
	RawCache      *RawCache  `json:"-"`
	Report        *Report    `json:"report,omitempty"`
	Score         int        `json:"score,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

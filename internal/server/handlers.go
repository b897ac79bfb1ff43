package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/site-auditor/internal/audit"
	"github.com/jonathan/site-auditor/internal/db"
	"github.com/jonathan/site-auditor/internal/types"
)

// listAuditsLimit caps the rows returned by GET /audits.
const listAuditsLimit = 20

// StartAuditRequest represents the request body for POST /audits
type StartAuditRequest struct {
	URL    string `json:"url" validate:"required,min=4"`
	UserID string `json:"user_id,omitempty"`
	Public bool   `json:"public,omitempty"`
	// Queue waits for a free audit slot instead of rejecting with 503.
	Queue bool `json:"queue,omitempty"`
}

// Validate validates the StartAuditRequest using the validator.
func (r *StartAuditRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// StartAuditResponse represents the response for POST /audits
type StartAuditResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobResponse represents an audit job in API responses
type JobResponse struct {
	JobID         string        `json:"job_id"`
	SiteURL       string        `json:"site_url"`
	Status        string        `json:"status"`
	StatusMessage string        `json:"status_message,omitempty"`
	Score         int           `json:"score"`
	Report        *types.Report `json:"report,omitempty"`
	CreatedAt     string        `json:"created_at"`
	CompletedAt   string        `json:"completed_at,omitempty"`
}

// KeywordsRequest represents the request body for POST /keywords
type KeywordsRequest struct {
	SiteURL string `json:"site_url" validate:"required,min=4"`
	Topic   string `json:"topic,omitempty"`
}

// Validate validates the KeywordsRequest using the validator.
func (r *KeywordsRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

func jobResponse(job *types.AuditJob) JobResponse {
	resp := JobResponse{
		JobID:         job.ID.String(),
		SiteURL:       job.SiteURL,
		Status:        string(job.Status),
		StatusMessage: job.StatusMessage,
		Score:         job.Score,
		Report:        job.Report,
		CreatedAt:     job.CreatedAt.Format(time.RFC3339),
	}
	if job.CompletedAt != nil {
		resp.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

// handleStartAudit admits a new audit job
func (s *Server) handleStartAudit(w http.ResponseWriter, r *http.Request) {
	var req StartAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "url is required")
		return
	}

	jobID, err := s.audits.StartAudit(r.Context(), req.URL, audit.StartOptions{
		UserID: req.UserID,
		Public: req.Public,
		Queue:  req.Queue,
	})
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusAccepted, StartAuditResponse{
		JobID:  jobID.String(),
		Status: string(types.JobPending),
	})
}

// handleGetAudit returns one audit job, including its report once completed
func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID format")
		return
	}

	job, err := s.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if job == nil {
		s.errorResponse(w, http.StatusNotFound, "Job not found")
		return
	}

	s.jsonResponse(w, http.StatusOK, jobResponse(job))
}

// handleListAudits returns job summaries, optionally filtered by site URL
// and status
func (s *Server) handleListAudits(w http.ResponseWriter, r *http.Request) {
	filters := db.JobFilters{
		Status: r.URL.Query().Get("status"),
		Limit:  listAuditsLimit,
	}
	if rawURL := r.URL.Query().Get("url"); rawURL != "" {
		normalized, err := audit.NormalizeSiteURL(rawURL)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		filters.SiteURL = normalized
	}

	jobs, err := s.jobs.ListJobsFiltered(r.Context(), filters)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	responses := make([]JobResponse, 0, len(jobs))
	for i := range jobs {
		responses = append(responses, jobResponse(&jobs[i]))
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"jobs":  responses,
		"count": len(responses),
	})
}

// handleRetryAudit re-runs a failed job under its existing id
func (s *Server) handleRetryAudit(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID format")
		return
	}

	if err := s.audits.RetryAudit(r.Context(), jobID); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusAccepted, StartAuditResponse{
		JobID:  jobID.String(),
		Status: string(types.JobPending),
	})
}

// handleAuditEvents streams job status updates via SSE. The current state
// is sent first so subscribers that connect late still see where the job
// stands; updates then follow until the job reaches a terminal status.
func (s *Server) handleAuditEvents(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID format")
		return
	}

	job, err := s.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if job == nil {
		s.errorResponse(w, http.StatusNotFound, "Job not found")
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	snapshot := types.StatusEvent{
		Message: job.StatusMessage,
		Status:  eventStatusFor(job.Status),
	}
	if err := sse.WriteEvent("status", snapshot); err != nil {
		return
	}
	if job.Status.Terminal() {
		sse.WriteComplete(jobID.String(), string(job.Status))
		return
	}

	ch := s.audits.Hub().Subscribe(jobID)
	defer s.audits.Hub().Unsubscribe(jobID, ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := sse.WriteEvent("status", evt); err != nil {
				s.logger.Warn("write status event failed",
					zap.String("job_id", jobID.String()),
					zap.Error(err))
				return
			}
			if evt.Status == types.EventCompleted || evt.Status == types.EventFailed {
				sse.WriteComplete(jobID.String(), evt.Status)
				return
			}
		}
	}
}

// handleKeywords runs keyword discovery synchronously
func (s *Server) handleKeywords(w http.ResponseWriter, r *http.Request) {
	if s.keywords == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "keyword discovery is not configured")
		return
	}

	var req KeywordsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "site_url is required")
		return
	}

	found, err := s.keywords.Discover(r.Context(), req.SiteURL, req.Topic)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if found == nil {
		found = []types.Keyword{}
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"site_url": req.SiteURL,
		"keywords": found,
		"count":    len(found),
	})
}

// eventStatusFor collapses a job status into the event vocabulary
// subscribers see.
func eventStatusFor(status types.JobStatus) string {
	switch status {
	case types.JobCompleted:
		return types.EventCompleted
	case types.JobFailed:
		return types.EventFailed
	default:
		return types.EventProcessing
	}
}

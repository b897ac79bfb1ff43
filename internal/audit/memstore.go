// Package audit - memstore.go provides an in-memory job store for runs
// without a database (one-shot CLI audits) and for tests.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/site-auditor/internal/types"
)

// MemoryJobStore is a JobStore backed by process memory. Safe for concurrent
// use. Reads return struct copies; the cache and report pointers they carry
// are never written after save, so callers treat them as read-only.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*types.AuditJob
}

// NewMemoryJobStore creates an empty in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[uuid.UUID]*types.AuditJob)}
}

// CreateJob records a new audit job and fills in its timestamps.
func (m *MemoryJobStore) CreateJob(_ context.Context, job *types.AuditJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now

	stored := *job
	m.jobs[job.ID] = &stored
	return nil
}

// GetJob returns a copy of the job, or nil when the id is unknown.
func (m *MemoryJobStore) GetJob(_ context.Context, id uuid.UUID) (*types.AuditJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	job := *stored
	return &job, nil
}

// UpdateJobStatus updates a job's lifecycle state and status message.
func (m *MemoryJobStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status types.JobStatus, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.jobs[id]
	if !ok {
		return nil
	}
	stored.Status = status
	stored.StatusMessage = message
	stored.UpdatedAt = time.Now()
	return nil
}

// SaveJobResult stores the compiled report and marks the job completed.
func (m *MemoryJobStore) SaveJobResult(_ context.Context, id uuid.UUID, report *types.Report, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.jobs[id]
	if !ok {
		return nil
	}
	now := time.Now()
	stored.Status = types.JobCompleted
	stored.StatusMessage = ""
	stored.Report = report
	stored.Score = score
	stored.CompletedAt = &now
	stored.UpdatedAt = now
	return nil
}

// SaveRawCache stores the crawl and analysis intermediates for reuse.
func (m *MemoryJobStore) SaveRawCache(_ context.Context, id uuid.UUID, cache *types.RawCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.jobs[id]
	if !ok {
		return nil
	}
	stored.RawCache = cache
	stored.UpdatedAt = time.Now()
	return nil
}

// LatestCompletedJobForURL returns a copy of the most recent completed audit
// of a site, or nil when the site has never been audited successfully.
func (m *MemoryJobStore) LatestCompletedJobForURL(_ context.Context, siteURL string) (*types.AuditJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *types.AuditJob
	for _, stored := range m.jobs {
		if stored.SiteURL != siteURL || stored.Status != types.JobCompleted {
			continue
		}
		if latest == nil || stored.CreatedAt.After(latest.CreatedAt) {
			latest = stored
		}
	}
	if latest == nil {
		return nil, nil
	}
	job := *latest
	return &job, nil
}

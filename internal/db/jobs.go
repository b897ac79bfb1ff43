package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/site-auditor/internal/types"
)

// jobColumns is the select list shared by the single-job queries. The raw
// cache and report are heavy, so the list queries leave them out.
const jobColumns = `id, site_url, user_id, status, status_message, public, raw_cache, report, score, created_at, updated_at, completed_at`

// CreateJob inserts a new audit job and fills in its timestamps
func (db *DB) CreateJob(ctx context.Context, job *types.AuditJob) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO audit_jobs (id, site_url, user_id, status, status_message, public)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		job.ID, job.SiteURL, job.UserID, string(job.Status), job.StatusMessage, job.Public,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob retrieves an audit job by ID, including its raw cache and report
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*types.AuditJob, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM audit_jobs WHERE id = $1`,
		id,
	)
	job, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// UpdateJobStatus updates a job's lifecycle state and status message
func (db *DB) UpdateJobStatus(ctx context.Context, id uuid.UUID, status types.JobStatus, message string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE audit_jobs SET status = $1, status_message = $2, updated_at = NOW() WHERE id = $3`,
		string(status), message, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

// SaveJobResult stores the compiled report and marks the job completed
func (db *DB) SaveJobResult(ctx context.Context, id uuid.UUID, report *types.Report, score int) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`UPDATE audit_jobs
		 SET status = $1, status_message = '', report = $2, score = $3,
		     completed_at = NOW(), updated_at = NOW()
		 WHERE id = $4`,
		string(types.JobCompleted), reportJSON, score, id,
	)
	if err != nil {
		return fmt.Errorf("failed to save job result: %w", err)
	}
	return nil
}

// SaveRawCache stores the crawl and analysis intermediates for reuse
func (db *DB) SaveRawCache(ctx context.Context, id uuid.UUID, cache *types.RawCache) error {
	cacheJSON, err := json.Marshal(cache)
	if err != nil {
		return fmt.Errorf("failed to marshal raw cache: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`UPDATE audit_jobs SET raw_cache = $1, updated_at = NOW() WHERE id = $2`,
		cacheJSON, id,
	)
	if err != nil {
		return fmt.Errorf("failed to save raw cache: %w", err)
	}
	return nil
}

// LatestCompletedJobForURL returns the most recent completed audit of a
// site, or nil when the site has never been audited successfully
func (db *DB) LatestCompletedJobForURL(ctx context.Context, siteURL string) (*types.AuditJob, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM audit_jobs
		 WHERE site_url = $1 AND status = $2
		 ORDER BY created_at DESC
		 LIMIT 1`,
		siteURL, string(types.JobCompleted),
	)
	job, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest completed job: %w", err)
	}
	return job, nil
}

// JobFilters holds optional filters for listing jobs
type JobFilters struct {
	SiteURL string
	Status  string
	Limit   int
}

// ListJobsFiltered retrieves job summaries with optional filters. Raw
// caches and reports are not loaded.
func (db *DB) ListJobsFiltered(ctx context.Context, filters JobFilters) ([]types.AuditJob, error) {
	if filters.Limit == 0 {
		filters.Limit = 50
	}

	query := `SELECT id, site_url, user_id, status, status_message, public, score, created_at, updated_at, completed_at
		FROM audit_jobs WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.SiteURL != "" {
		query += fmt.Sprintf(" AND site_url = $%d", argNum)
		args = append(args, filters.SiteURL)
		argNum++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filters.Status)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argNum)
	args = append(args, filters.Limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []types.AuditJob
	for rows.Next() {
		var job types.AuditJob
		var status string
		if err := rows.Scan(&job.ID, &job.SiteURL, &job.UserID, &status, &job.StatusMessage,
			&job.Public, &job.Score, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		job.Status = types.JobStatus(status)
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (*types.AuditJob, error) {
	var (
		job       types.AuditJob
		status    string
		cacheJSON []byte
		repJSON   []byte
	)
	err := row.Scan(&job.ID, &job.SiteURL, &job.UserID, &status, &job.StatusMessage,
		&job.Public, &cacheJSON, &repJSON, &job.Score,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt)
	if err != nil {
		return nil, err
	}
	job.Status = types.JobStatus(status)

	if len(cacheJSON) > 0 {
		var cache types.RawCache
		if err := json.Unmarshal(cacheJSON, &cache); err != nil {
			return nil, fmt.Errorf("failed to decode raw cache: %w", err)
		}
		job.RawCache = &cache
	}
	if len(repJSON) > 0 {
		var report types.Report
		if err := json.Unmarshal(repJSON, &report); err != nil {
			return nil, fmt.Errorf("failed to decode report: %w", err)
		}
		job.Report = &report
	}
	return &job, nil
}

// Package audit owns the job lifecycle: admission, the pending → crawling →
// processing → completed state machine, cache reuse, and the detached
// pipeline goroutine that runs the crawl, ingest, analysis and report steps.
package audit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/site-auditor/internal/analysis"
	"github.com/jonathan/site-auditor/internal/events"
	"github.com/jonathan/site-auditor/internal/telemetry"
	"github.com/jonathan/site-auditor/internal/types"
)

// maxFailureMessage bounds the failure text persisted on a job.
const maxFailureMessage = 500

// ErrJobNotFound is returned when a job id has no stored record.
var ErrJobNotFound = errors.New("job not found")

// ErrInvalidURL is returned when an audit target fails validation.
var ErrInvalidURL = errors.New("invalid site url")

// ErrNotRetryable is returned when a retry is requested for a job that is
// not in the failed state.
var ErrNotRetryable = errors.New("only failed jobs can be retried")

// JobStore persists audit jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job *types.AuditJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*types.AuditJob, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status types.JobStatus, message string) error
	SaveJobResult(ctx context.Context, id uuid.UUID, report *types.Report, score int) error
	SaveRawCache(ctx context.Context, id uuid.UUID, cache *types.RawCache) error
	LatestCompletedJobForURL(ctx context.Context, siteURL string) (*types.AuditJob, error)
}

// ChunkCopier is the slice of the chunk store the manager needs for reuse.
type ChunkCopier interface {
	CopyChunks(ctx context.Context, fromJob, toJob uuid.UUID) (int, error)
	CountChunks(ctx context.Context, jobID uuid.UUID) (int, error)
}

// Crawler fetches the site corpus.
type Crawler interface {
	Crawl(ctx context.Context, siteURL string) (*types.CrawlResult, error)
}

// Ingestor chunks and embeds crawled pages into the knowledge base.
type Ingestor interface {
	Ingest(ctx context.Context, jobID uuid.UUID, pages []types.Page) (int, error)
}

// Analyzer runs the audit analysis tasks.
type Analyzer interface {
	Run(ctx context.Context, jobID uuid.UUID, base analysis.BaseContext, progress analysis.ProgressFunc) map[string]string
}

// ReportCompiler consolidates task results into the final report.
type ReportCompiler interface {
	Compile(ctx context.Context, siteURL string, taskResults map[string]string, pages []types.Page) (*types.Report, error)
}

// StartOptions control admission and visibility of a new audit.
type StartOptions struct {
	UserID string
	Public bool
	// Queue makes admission wait for a free slot instead of rejecting
	// with ErrServerBusy.
	Queue bool
}

// ManagerConfig wires the manager's collaborators.
type ManagerConfig struct {
	Store    JobStore
	Chunks   ChunkCopier
	Crawler  Crawler
	Ingestor Ingestor
	Analyzer Analyzer
	Compiler ReportCompiler
	Hub      *events.Hub
	Gate     *Gate
	Logger   *zap.Logger
}

// Manager drives audit jobs through their lifecycle.
type Manager struct {
	store    JobStore
	chunks   ChunkCopier
	crawler  Crawler
	ingestor Ingestor
	analyzer Analyzer
	compiler ReportCompiler
	hub      *events.Hub
	gate     *Gate
	logger   *zap.Logger
}

func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gate := cfg.Gate
	if gate == nil {
		gate = NewGate(DefaultMaxConcurrent)
	}
	hub := cfg.Hub
	if hub == nil {
		hub = events.NewHub()
	}
	return &Manager{
		store:    cfg.Store,
		chunks:   cfg.Chunks,
		crawler:  cfg.Crawler,
		ingestor: cfg.Ingestor,
		analyzer: cfg.Analyzer,
		compiler: cfg.Compiler,
		hub:      hub,
		gate:     gate,
		logger:   logger,
	}
}

// Hub exposes the status hub for event subscribers.
func (m *Manager) Hub() *events.Hub {
	return m.hub
}

// StartAudit validates the URL, admits the job, creates the record and
// spawns the pipeline goroutine. It returns the job id as soon as the job
// record exists; progress is observable through the hub and the record.
func (m *Manager) StartAudit(ctx context.Context, siteURL string, opts StartOptions) (uuid.UUID, error) {
	normalized, err := NormalizeSiteURL(siteURL)
	if err != nil {
		return uuid.Nil, err
	}

	haveSlot := false
	if !opts.Queue {
		if !m.gate.TryAcquire() {
			telemetry.AuditsRejected.Inc()
			return uuid.Nil, ErrServerBusy
		}
		haveSlot = true
	}

	job := &types.AuditJob{
		ID:      uuid.New(),
		SiteURL: normalized,
		UserID:  opts.UserID,
		Status:  types.JobPending,
		Public:  opts.Public,
	}
	if err := m.store.CreateJob(ctx, job); err != nil {
		if haveSlot {
			m.gate.Release()
		}
		return uuid.Nil, fmt.Errorf("create job: %w", err)
	}

	m.logger.Info("audit accepted",
		zap.String("job_id", job.ID.String()),
		zap.String("site_url", normalized),
		zap.Bool("queued", opts.Queue))
	telemetry.AuditsStarted.Inc()

	go m.runPipeline(job, haveSlot)

	return job.ID, nil
}

// RetryAudit re-runs a failed job under its existing id, resuming from the
// raw cache: cached pages skip the crawl, cached agent results skip the
// analyses.
func (m *Manager) RetryAudit(ctx context.Context, jobID uuid.UUID) error {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if job.Status != types.JobFailed {
		return fmt.Errorf("job %s is %s: %w", jobID, job.Status, ErrNotRetryable)
	}
	if !m.gate.TryAcquire() {
		telemetry.AuditsRejected.Inc()
		return ErrServerBusy
	}

	m.setStatus(ctx, job, types.JobPending, "retrying audit")
	telemetry.AuditsStarted.Inc()
	go m.runPipeline(job, true)
	return nil
}

// runPipeline owns the job from admission to its terminal status. It is
// detached from the request context: a started audit runs to completion.
func (m *Manager) runPipeline(job *types.AuditJob, haveSlot bool) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("audit pipeline panic",
				zap.String("job_id", job.ID.String()),
				zap.Any("panic", r))
			m.fail(ctx, job, fmt.Errorf("internal error: %v", r))
		}
	}()

	if !haveSlot {
		m.setStatus(ctx, job, types.JobPending, "waiting for an audit slot")
		if err := m.gate.Acquire(ctx); err != nil {
			m.fail(ctx, job, fmt.Errorf("acquire audit slot: %w", err))
			return
		}
	}
	defer m.gate.Release()

	report, err := m.execute(ctx, job)
	if err != nil {
		m.fail(ctx, job, err)
		return
	}
	m.complete(ctx, job, report)
}

func (m *Manager) execute(ctx context.Context, job *types.AuditJob) (*types.Report, error) {
	cache := job.RawCache
	if cache == nil || len(cache.Pages) == 0 {
		cache = m.reuseFromPriorAudit(ctx, job)
	}

	var (
		pages        []types.Page
		contact      types.Contact
		translation  types.TranslationSignals
		agentResults map[string]string
	)

	if cache != nil && len(cache.Pages) > 0 {
		pages = cache.Pages
		contact = cache.Contact
		translation = cache.Translation
		agentResults = cache.AgentResults
		m.setStatus(ctx, job, types.JobProcessing, "reusing crawled content")

		// A retry whose first run died before indexing still needs chunks.
		if len(agentResults) == 0 {
			if count, err := m.chunks.CountChunks(ctx, job.ID); err == nil && count == 0 {
				m.setStatus(ctx, job, types.JobProcessing, fmt.Sprintf("indexing %d pages", len(pages)))
				if _, err := m.ingestor.Ingest(ctx, job.ID, pages); err != nil {
					return nil, fmt.Errorf("index pages: %w", err)
				}
			}
		}
	} else {
		m.setStatus(ctx, job, types.JobCrawling, "crawling site")
		result, err := m.crawler.Crawl(ctx, job.SiteURL)
		if err != nil {
			return nil, fmt.Errorf("crawl site: %w", err)
		}
		pages = result.Pages
		contact = result.Contact
		translation = result.Translation

		m.saveCache(ctx, job, &types.RawCache{Pages: pages, Contact: contact, Translation: translation})

		m.setStatus(ctx, job, types.JobProcessing, fmt.Sprintf("indexing %d pages", len(pages)))
		if _, err := m.ingestor.Ingest(ctx, job.ID, pages); err != nil {
			return nil, fmt.Errorf("index pages: %w", err)
		}
	}

	if len(agentResults) == 0 {
		base := analysis.BaseContext{
			SiteURL:     job.SiteURL,
			Summary:     siteSummary(pages),
			Contact:     contact,
			Translation: translation,
		}
		agentResults = m.analyzer.Run(ctx, job.ID, base, func(completed, total int) {
			m.progress(ctx, job, completed, total)
		})
		m.saveCache(ctx, job, &types.RawCache{
			Pages:        pages,
			Contact:      contact,
			Translation:  translation,
			AgentResults: agentResults,
		})
	} else {
		m.setStatus(ctx, job, types.JobProcessing, "reusing prior analysis results")
	}

	m.setStatus(ctx, job, types.JobProcessing, "compiling report")
	report, err := m.compiler.Compile(ctx, job.SiteURL, agentResults, pages)
	if err != nil {
		return nil, fmt.Errorf("compile report: %w", err)
	}
	return report, nil
}

// reuseFromPriorAudit copies the chunks and raw cache of the most recent
// completed audit of the same URL onto this job. Agent results are not
// carried over; the analyses re-run against the copied knowledge base.
func (m *Manager) reuseFromPriorAudit(ctx context.Context, job *types.AuditJob) *types.RawCache {
	prior, err := m.store.LatestCompletedJobForURL(ctx, job.SiteURL)
	if err != nil {
		m.logger.Warn("reuse lookup failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err))
		return nil
	}
	if prior == nil || prior.ID == job.ID || prior.RawCache == nil || len(prior.RawCache.Pages) == 0 {
		return nil
	}

	count, err := m.chunks.CountChunks(ctx, prior.ID)
	if err != nil || count == 0 {
		return nil
	}
	if _, err := m.chunks.CopyChunks(ctx, prior.ID, job.ID); err != nil {
		m.logger.Warn("chunk copy failed, running full crawl",
			zap.String("job_id", job.ID.String()),
			zap.String("prior_job_id", prior.ID.String()),
			zap.Error(err))
		return nil
	}

	cache := &types.RawCache{
		Pages:       prior.RawCache.Pages,
		Contact:     prior.RawCache.Contact,
		Translation: prior.RawCache.Translation,
	}
	m.saveCache(ctx, job, cache)

	m.logger.Info("reusing prior audit",
		zap.String("job_id", job.ID.String()),
		zap.String("prior_job_id", prior.ID.String()),
		zap.Int("chunks", count))
	return cache
}

func (m *Manager) saveCache(ctx context.Context, job *types.AuditJob, cache *types.RawCache) {
	job.RawCache = cache
	if err := m.store.SaveRawCache(ctx, job.ID, cache); err != nil {
		m.logger.Warn("persist raw cache failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err))
	}
}

func (m *Manager) setStatus(ctx context.Context, job *types.AuditJob, status types.JobStatus, message string) {
	job.Status = status
	job.StatusMessage = message
	if err := m.store.UpdateJobStatus(ctx, job.ID, status, message); err != nil {
		m.logger.Warn("persist job status failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err))
	}
	m.hub.Publish(job.ID, types.StatusEvent{Message: message, Status: types.EventProcessing})
}

func (m *Manager) progress(ctx context.Context, job *types.AuditJob, completed, total int) {
	message := fmt.Sprintf("%d/%d analyses complete", completed, total)
	job.StatusMessage = message
	if err := m.store.UpdateJobStatus(ctx, job.ID, types.JobProcessing, message); err != nil {
		m.logger.Warn("persist job status failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err))
	}
	m.hub.Publish(job.ID, types.StatusEvent{Message: message, Status: types.EventProcessing, Count: completed})
}

func (m *Manager) complete(ctx context.Context, job *types.AuditJob, report *types.Report) {
	if err := m.store.SaveJobResult(ctx, job.ID, report, report.Score); err != nil {
		m.fail(ctx, job, fmt.Errorf("persist report: %w", err))
		return
	}
	job.Status = types.JobCompleted
	job.Report = report
	job.Score = report.Score
	m.hub.Publish(job.ID, types.StatusEvent{Message: "audit complete", Status: types.EventCompleted})
	telemetry.AuditsCompleted.Inc()
	m.logger.Info("audit completed",
		zap.String("job_id", job.ID.String()),
		zap.Int("score", report.Score),
		zap.Int("findings", report.IssueCount))
}

func (m *Manager) fail(ctx context.Context, job *types.AuditJob, cause error) {
	message := clampMessage(cause.Error(), maxFailureMessage)
	job.Status = types.JobFailed
	job.StatusMessage = message
	if err := m.store.UpdateJobStatus(ctx, job.ID, types.JobFailed, message); err != nil {
		m.logger.Error("persist job failure failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err))
	}
	m.hub.Publish(job.ID, types.StatusEvent{Message: message, Status: types.EventFailed})
	telemetry.AuditsFailed.Inc()
	m.logger.Error("audit failed",
		zap.String("job_id", job.ID.String()),
		zap.Error(cause))
}

// NormalizeSiteURL validates an audit target and returns its canonical
// form. A missing scheme defaults to https.
func NormalizeSiteURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidURL, raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w %q: unsupported scheme %q", ErrInvalidURL, raw, parsed.Scheme)
	}
	if parsed.Host == "" || !strings.Contains(parsed.Host, ".") {
		return "", fmt.Errorf("%w %q: missing host", ErrInvalidURL, raw)
	}
	parsed.Fragment = ""
	return strings.TrimSuffix(parsed.String(), "/"), nil
}

// siteSummary feeds the analyses a short description of the site. The
// crawler puts the homepage first.
func siteSummary(pages []types.Page) string {
	if len(pages) == 0 {
		return ""
	}
	return clampMessage(pages[0].Content, 600)
}

func clampMessage(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

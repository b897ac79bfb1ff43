package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathan/site-auditor/internal/analysis"
	"github.com/jonathan/site-auditor/internal/events"
	"github.com/jonathan/site-auditor/internal/kb"
	"github.com/jonathan/site-auditor/internal/types"
)

type fakeCrawler struct {
	mu      sync.Mutex
	calls   int
	result  *types.CrawlResult
	err     error
	block   chan struct{}
	current int
	peak    int
}

func (f *fakeCrawler) Crawl(ctx context.Context, siteURL string) (*types.CrawlResult, error) {
	f.mu.Lock()
	f.calls++
	f.current++
	if f.current > f.peak {
		f.peak = f.current
	}
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	f.current--
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeCrawler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeIngestor struct {
	mu    sync.Mutex
	calls int
	store kb.ChunkStore
	err   error
}

func (f *fakeIngestor) Ingest(ctx context.Context, jobID uuid.UUID, pages []types.Page) (int, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	chunks := make([]types.Chunk, 0, len(pages))
	for i, page := range pages {
		chunks = append(chunks, types.Chunk{
			ID:        uuid.New(),
			JobID:     jobID,
			URL:       page.URL,
			Content:   page.Content,
			Embedding: []float32{float32(i), 1, 0},
		})
	}
	if err := f.store.InsertChunks(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (f *fakeIngestor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeAnalyzer) Run(ctx context.Context, jobID uuid.UUID, base analysis.BaseContext, progress analysis.ProgressFunc) map[string]string {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if progress != nil {
		progress(6, 6)
	}
	return map[string]string{
		analysis.TaskLegalCompliance: "imprint looks fine",
		analysis.TaskPrivacy:         "privacy policy present",
	}
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCompiler struct {
	mu     sync.Mutex
	calls  int
	report *types.Report
	err    error
	panics bool
}

func (f *fakeCompiler) Compile(ctx context.Context, siteURL string, taskResults map[string]string, pages []types.Page) (*types.Report, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.panics {
		panic("compiler exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func (f *fakeCompiler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testHarness struct {
	store    *MemoryJobStore
	chunks   *kb.MemoryStore
	crawler  *fakeCrawler
	ingestor *fakeIngestor
	analyzer *fakeAnalyzer
	compiler *fakeCompiler
	manager  *Manager
}

func newHarness(gate *Gate) *testHarness {
	store := NewMemoryJobStore()
	chunks := kb.NewMemoryStore()
	crawler := &fakeCrawler{result: &types.CrawlResult{
		Pages: []types.Page{
			{URL: "https://example.com", Title: "Home", Content: "Welcome to the shop", Type: types.PageTypeGeneral},
			{URL: "https://example.com/impressum", Title: "Impressum", Content: "Acme GmbH, Berlin", Type: types.PageTypeLegal},
		},
		Contact: types.Contact{Email: "info@example.com"},
	}}
	ingestor := &fakeIngestor{store: chunks}
	analyzer := &fakeAnalyzer{}
	compiler := &fakeCompiler{report: &types.Report{
		Overview:   "all clear",
		Sections:   []types.ReportSection{{Title: "Legal Compliance"}},
		Score:      100,
		IssueCount: 0,
	}}

	manager := NewManager(ManagerConfig{
		Store:    store,
		Chunks:   chunks,
		Crawler:  crawler,
		Ingestor: ingestor,
		Analyzer: analyzer,
		Compiler: compiler,
		Hub:      events.NewHub(),
		Gate:     gate,
		Logger:   zap.NewNop(),
	})

	return &testHarness{
		store:    store,
		chunks:   chunks,
		crawler:  crawler,
		ingestor: ingestor,
		analyzer: analyzer,
		compiler: compiler,
		manager:  manager,
	}
}

func waitForTerminal(t *testing.T, store *MemoryJobStore, id uuid.UUID) *types.AuditJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), id)
		require.NoError(t, err)
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal status")
	return nil
}

func TestStartAuditRunsFullPipeline(t *testing.T) {
	h := newHarness(nil)

	jobID, err := h.manager.StartAudit(context.Background(), "https://example.com", StartOptions{UserID: "u1"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, jobID)

	job := waitForTerminal(t, h.store, jobID)
	assert.Equal(t, types.JobCompleted, job.Status)
	require.NotNil(t, job.Report)
	assert.Equal(t, 100, job.Score)
	assert.NotNil(t, job.CompletedAt)

	assert.Equal(t, 1, h.crawler.callCount())
	assert.Equal(t, 1, h.ingestor.callCount())
	assert.Equal(t, 1, h.analyzer.callCount())
	assert.Equal(t, 1, h.compiler.callCount())

	count, err := h.chunks.CountChunks(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStartAuditNormalizesURL(t *testing.T) {
	h := newHarness(nil)

	jobID, err := h.manager.StartAudit(context.Background(), "example.com", StartOptions{})
	require.NoError(t, err)

	job, err := h.store.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", job.SiteURL)
	waitForTerminal(t, h.store, jobID)
}

func TestStartAuditRejectsInvalidURL(t *testing.T) {
	h := newHarness(NewGate(1))

	_, err := h.manager.StartAudit(context.Background(), "not a url", StartOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidURL)

	// No job record and no leaked slot.
	h.store.mu.Lock()
	assert.Empty(t, h.store.jobs)
	h.store.mu.Unlock()
	assert.True(t, h.manager.gate.TryAcquire())
	h.manager.gate.Release()
}

func TestStartAuditRejectsWhenBusy(t *testing.T) {
	gate := NewGate(1)
	h := newHarness(gate)
	h.crawler.block = make(chan struct{})

	first, err := h.manager.StartAudit(context.Background(), "https://example.com", StartOptions{})
	require.NoError(t, err)

	_, err = h.manager.StartAudit(context.Background(), "https://other.example.com", StartOptions{})
	assert.ErrorIs(t, err, ErrServerBusy)

	close(h.crawler.block)
	waitForTerminal(t, h.store, first)

	// Slot freed after the terminal status.
	var second uuid.UUID
	require.Eventually(t, func() bool {
		id, err := h.manager.StartAudit(context.Background(), "https://third.example.com", StartOptions{})
		if err != nil {
			return false
		}
		second = id
		return true
	}, 2*time.Second, 10*time.Millisecond)
	waitForTerminal(t, h.store, second)
}

func TestStartAuditQueueModeWaitsInsteadOfRejecting(t *testing.T) {
	gate := NewGate(1)
	h := newHarness(gate)
	h.crawler.block = make(chan struct{})

	first, err := h.manager.StartAudit(context.Background(), "https://example.com", StartOptions{})
	require.NoError(t, err)

	queued, err := h.manager.StartAudit(context.Background(), "https://queued.example.com", StartOptions{Queue: true})
	require.NoError(t, err)

	// The queued job exists but cannot start while the slot is held.
	time.Sleep(30 * time.Millisecond)
	job, err := h.store.GetJob(context.Background(), queued)
	require.NoError(t, err)
	assert.False(t, job.Status.Terminal())

	close(h.crawler.block)
	waitForTerminal(t, h.store, first)
	waitForTerminal(t, h.store, queued)
}

func TestGateCeilingNeverExceeded(t *testing.T) {
	gate := NewGate(2)
	h := newHarness(gate)
	h.crawler.block = make(chan struct{})

	ids := make([]uuid.UUID, 0, 5)
	for i := 0; i < 5; i++ {
		id, err := h.manager.StartAudit(context.Background(),
			fmt.Sprintf("https://site%d.example.com", i), StartOptions{Queue: true})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// Give the queued pipelines time to contend for slots.
	time.Sleep(50 * time.Millisecond)
	close(h.crawler.block)

	for _, id := range ids {
		waitForTerminal(t, h.store, id)
	}

	h.crawler.mu.Lock()
	peak := h.crawler.peak
	h.crawler.mu.Unlock()
	assert.LessOrEqual(t, peak, 2)
}

func TestSecondAuditReusesChunks(t *testing.T) {
	h := newHarness(nil)

	first, err := h.manager.StartAudit(context.Background(), "https://example.com", StartOptions{})
	require.NoError(t, err)
	firstJob := waitForTerminal(t, h.store, first)
	require.Equal(t, types.JobCompleted, firstJob.Status)

	second, err := h.manager.StartAudit(context.Background(), "https://example.com", StartOptions{})
	require.NoError(t, err)
	secondJob := waitForTerminal(t, h.store, second)
	require.Equal(t, types.JobCompleted, secondJob.Status)

	// No second crawl, no second ingest; analyses re-run.
	assert.Equal(t, 1, h.crawler.callCount())
	assert.Equal(t, 1, h.ingestor.callCount())
	assert.Equal(t, 2, h.analyzer.callCount())

	firstCount, err := h.chunks.CountChunks(context.Background(), first)
	require.NoError(t, err)
	secondCount, err := h.chunks.CountChunks(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, firstCount, secondCount)
	assert.Greater(t, secondCount, 0)
}

func TestCrawlFailureMarksJobFailed(t *testing.T) {
	h := newHarness(nil)
	h.crawler.err = errors.New("site unreachable")

	jobID, err := h.manager.StartAudit(context.Background(), "https://example.com", StartOptions{})
	require.NoError(t, err)

	job := waitForTerminal(t, h.store, jobID)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.Contains(t, job.StatusMessage, "crawl site")
	assert.Contains(t, job.StatusMessage, "site unreachable")
}

func TestCompileFailureMarksJobFailed(t *testing.T) {
	h := newHarness(nil)
	h.compiler.err = errors.New("consolidation broke")

	jobID, err := h.manager.StartAudit(context.Background(), "https://example.com", StartOptions{})
	require.NoError(t, err)

	job := waitForTerminal(t, h.store, jobID)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.Contains(t, job.StatusMessage, "compile report")
}

func TestPipelinePanicMarksJobFailed(t *testing.T) {
	h := newHarness(nil)
	h.compiler.panics = true

	jobID, err := h.manager.StartAudit(context.Background(), "https://example.com", StartOptions{})
	require.NoError(t, err)

	job := waitForTerminal(t, h.store, jobID)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.Contains(t, job.StatusMessage, "internal error")

	// The slot must be released despite the panic.
	assert.True(t, h.manager.gate.TryAcquire())
	h.manager.gate.Release()
}

func TestFailureMessageIsClamped(t *testing.T) {
	h := newHarness(nil)
	h.crawler.err = errors.New(string(make([]byte, 2000)))

	jobID, err := h.manager.StartAudit(context.Background(), "https://example.com", StartOptions{})
	require.NoError(t, err)

	job := waitForTerminal(t, h.store, jobID)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.LessOrEqual(t, len([]rune(job.StatusMessage)), maxFailureMessage)
}

func TestRetryAuditSkipsCachedStages(t *testing.T) {
	h := newHarness(nil)

	// A failed job whose first run got through crawl and analysis.
	job := &types.AuditJob{
		ID:      uuid.New(),
		SiteURL: "https://example.com",
		Status:  types.JobFailed,
	}
	require.NoError(t, h.store.CreateJob(context.Background(), job))
	require.NoError(t, h.store.SaveRawCache(context.Background(), job.ID, &types.RawCache{
		Pages: []types.Page{{URL: "https://example.com", Content: "Welcome"}},
		AgentResults: map[string]string{
			analysis.TaskLegalCompliance: "cached legal analysis",
		},
	}))
	require.NoError(t, h.store.UpdateJobStatus(context.Background(), job.ID, types.JobFailed, "compile report: boom"))

	require.NoError(t, h.manager.RetryAudit(context.Background(), job.ID))

	retried := waitForTerminal(t, h.store, job.ID)
	assert.Equal(t, types.JobCompleted, retried.Status)

	assert.Equal(t, 0, h.crawler.callCount())
	assert.Equal(t, 0, h.analyzer.callCount())
	assert.Equal(t, 1, h.compiler.callCount())
}

func TestRetryAuditReingestsWhenChunksMissing(t *testing.T) {
	h := newHarness(nil)

	job := &types.AuditJob{
		ID:      uuid.New(),
		SiteURL: "https://example.com",
		Status:  types.JobFailed,
	}
	require.NoError(t, h.store.CreateJob(context.Background(), job))
	require.NoError(t, h.store.SaveRawCache(context.Background(), job.ID, &types.RawCache{
		Pages: []types.Page{{URL: "https://example.com", Content: "Welcome"}},
	}))

	require.NoError(t, h.manager.RetryAudit(context.Background(), job.ID))

	retried := waitForTerminal(t, h.store, job.ID)
	assert.Equal(t, types.JobCompleted, retried.Status)

	assert.Equal(t, 0, h.crawler.callCount())
	assert.Equal(t, 1, h.ingestor.callCount())
	assert.Equal(t, 1, h.analyzer.callCount())
}

func TestRetryAuditRejectsNonFailedJobs(t *testing.T) {
	h := newHarness(nil)

	jobID, err := h.manager.StartAudit(context.Background(), "https://example.com", StartOptions{})
	require.NoError(t, err)
	waitForTerminal(t, h.store, jobID)

	err = h.manager.RetryAudit(context.Background(), jobID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only failed jobs")
}

func TestRetryAuditUnknownJob(t *testing.T) {
	h := newHarness(nil)

	err := h.manager.RetryAudit(context.Background(), uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestStatusEventsReachSubscribers(t *testing.T) {
	h := newHarness(nil)
	h.crawler.block = make(chan struct{})

	jobID, err := h.manager.StartAudit(context.Background(), "https://example.com", StartOptions{})
	require.NoError(t, err)

	ch := h.manager.Hub().Subscribe(jobID)
	defer h.manager.Hub().Unsubscribe(jobID, ch)
	close(h.crawler.block)

	sawProcessing := false
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-ch:
			if evt.Status == types.EventProcessing {
				sawProcessing = true
			}
			if evt.Status == types.EventCompleted {
				assert.True(t, sawProcessing, "expected processing events before the terminal one")
				return
			}
			require.NotEqual(t, types.EventFailed, evt.Status)
		case <-deadline:
			t.Fatal("no terminal event received")
		}
	}
}

func TestNormalizeSiteURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"already canonical", "https://example.com", "https://example.com", false},
		{"adds scheme", "example.com", "https://example.com", false},
		{"keeps http", "http://example.com/shop", "http://example.com/shop", false},
		{"trims trailing slash", "https://example.com/", "https://example.com", false},
		{"drops fragment", "https://example.com/page#top", "https://example.com/page", false},
		{"empty", "   ", "", true},
		{"spaces inside", "not a url", "", true},
		{"bad scheme", "ftp://example.com", "", true},
		{"no host", "https:///path", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSiteURL(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Package analysis - coordinator.go runs the task roster concurrently.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/site-auditor/internal/llm"
	"github.com/jonathan/site-auditor/internal/prompts"
	"github.com/jonathan/site-auditor/internal/types"
)

// Retriever pulls supporting chunks for a task query. Satisfied by
// kb.Retriever.
type Retriever interface {
	Retrieve(ctx context.Context, jobID uuid.UUID, query string, k int) ([]types.Chunk, error)
}

// BaseContext carries the per-job facts every task prompt shares.
type BaseContext struct {
	SiteURL     string
	Summary     string
	Contact     types.Contact
	Translation types.TranslationSignals
}

// ProgressFunc receives completed/total snapshots while the batch runs.
type ProgressFunc func(completed, total int)

// Coordinator fans the roster out, isolating every task failure so one bad
// analysis never sinks the batch.
type Coordinator struct {
	client    llm.Client
	retriever Retriever
	logger    *zap.Logger

	// ProgressInterval is how often the progress callback is invoked while
	// tasks are still running.
	ProgressInterval time.Duration
}

// NewCoordinator creates a coordinator with the default progress interval.
func NewCoordinator(client llm.Client, retriever Retriever, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		client:           client,
		retriever:        retriever,
		logger:           logger,
		ProgressInterval: 2 * time.Second,
	}
}

// Run executes every roster task concurrently and returns a result for each
// task name. Failed or panicked tasks yield the Unavailable sentinel; Run
// itself never fails. progress may be nil.
func (c *Coordinator) Run(ctx context.Context, jobID uuid.UUID, base BaseContext, progress ProgressFunc) map[string]string {
	tasks := Roster()
	results := make(map[string]string, len(tasks))

	var mu sync.Mutex
	var completed atomic.Int32

	done := make(chan struct{})
	reporterExited := make(chan struct{})
	if progress != nil {
		go func() {
			defer close(reporterExited)
			ticker := time.NewTicker(c.ProgressInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					progress(int(completed.Load()), len(tasks))
				}
			}
		}()
	}

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			output := c.runTask(ctx, jobID, task, base)
			mu.Lock()
			results[task.Name] = output
			mu.Unlock()
			completed.Add(1)
		}(task)
	}
	wg.Wait()
	close(done)

	if progress != nil {
		// The reporter may be mid-callback when done closes; no progress
		// invocation may outlive Run, or a stale snapshot could overwrite
		// a later status written by the caller.
		<-reporterExited
		progress(len(tasks), len(tasks))
	}

	return results
}

// runTask executes a single task. Panics are converted into the sentinel so
// a misbehaving analysis cannot crash the pipeline goroutine.
func (c *Coordinator) runTask(ctx context.Context, jobID uuid.UUID, task Task, base BaseContext) (output string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("analysis task panicked",
				zap.String("task", task.Name),
				zap.Any("panic", r))
			output = Unavailable
		}
	}()

	chunks, err := c.retriever.Retrieve(ctx, jobID, task.Query, 0)
	if err != nil {
		// The task still runs on the base context alone.
		c.logger.Warn("retrieval failed, task runs without excerpts",
			zap.String("task", task.Name),
			zap.Error(err))
		chunks = nil
	}

	system := prompts.MustGet("analysis.json", task.PromptKey)
	user := buildContext(base, chunks)

	text, err := c.client.Complete(ctx, llm.CompletionRequest{
		System:      system,
		Messages:    []llm.Message{{Role: "user", Content: user}},
		Tier:        task.Tier,
		Temperature: 0.2,
	})
	if err != nil {
		c.logger.Warn("analysis task failed",
			zap.String("task", task.Name),
			zap.Error(err))
		return Unavailable
	}

	c.logger.Debug("analysis task complete",
		zap.String("task", task.Name),
		zap.Int("output_chars", len(text)))
	return text
}

func buildContext(base BaseContext, chunks []types.Chunk) string {
	template := prompts.MustGet("analysis.json", "analysis-context")

	summary := strings.TrimSpace(base.Summary)
	if summary == "" {
		summary = "(no site summary available)"
	}

	return prompts.Format(template, map[string]string{
		"SiteURL":     base.SiteURL,
		"BaseSummary": summary,
		"Translation": formatTranslation(base.Translation),
		"Contact":     formatContact(base.Contact),
		"Chunks":      formatChunks(chunks),
	})
}

func formatTranslation(signals types.TranslationSignals) string {
	if len(signals.Languages) == 0 {
		return "No language information detected."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Languages detected: %s.", strings.Join(signals.Languages, ", "))
	if signals.HasHreflang {
		sb.WriteString(" The site declares hreflang alternates.")
	}
	if signals.HasLanguageSwitcher {
		sb.WriteString(" A language switcher is present.")
	}
	if signals.MixedLanguage {
		sb.WriteString(" Content exists in more than one language.")
	}
	return sb.String()
}

func formatContact(contact types.Contact) string {
	parts := make([]string, 0, 2)
	if contact.Email != "" {
		parts = append(parts, "email "+contact.Email)
	}
	if contact.Phone != "" {
		parts = append(parts, "phone "+contact.Phone)
	}
	if len(parts) == 0 {
		return "No contact details found."
	}
	return strings.Join(parts, ", ")
}

func formatChunks(chunks []types.Chunk) string {
	if len(chunks) == 0 {
		return "(no excerpts retrieved)"
	}
	var sb strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%s]\n%s", chunk.URL, chunk.Content)
	}
	return sb.String()
}

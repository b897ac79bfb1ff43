// Package kb - builder.go turns crawled pages into stored, embedded chunks.
package kb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/site-auditor/internal/llm"
	"github.com/jonathan/site-auditor/internal/types"
)

// Builder ingests crawled pages into the knowledge base.
type Builder struct {
	client       llm.Client
	store        ChunkStore
	maxChunkSize int
	logger       *zap.Logger
}

// NewBuilder creates a builder. maxChunkSize of zero uses the default.
func NewBuilder(client llm.Client, store ChunkStore, maxChunkSize int, logger *zap.Logger) *Builder {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		client:       client,
		store:        store,
		maxChunkSize: maxChunkSize,
		logger:       logger,
	}
}

// Ingest chunks and embeds the pages and stores the result under the job.
// A chunk whose embedding call fails is logged and skipped; the rest of the
// batch still lands. Returns the number of chunks stored.
func (b *Builder) Ingest(ctx context.Context, jobID uuid.UUID, pages []types.Page) (int, error) {
	var chunks []types.Chunk
	failed := 0

	for _, page := range pages {
		parts := SplitIntoChunks(page.Content, b.maxChunkSize)
		for idx, part := range parts {
			embedding, err := b.client.Embed(ctx, part)
			if err != nil {
				failed++
				b.logger.Warn("chunk embedding failed, skipping",
					zap.String("url", page.URL),
					zap.Int("chunk_index", idx),
					zap.Error(err))
				continue
			}
			chunks = append(chunks, types.Chunk{
				ID:      uuid.New(),
				JobID:   jobID,
				URL:     page.URL,
				Content: part,
				Metadata: map[string]any{
					"page_type":   string(page.Type),
					"title":       page.Title,
					"chunk_index": idx,
				},
				Embedding: embedding,
			})
		}
	}

	if len(chunks) == 0 {
		// Analyses still run without retrieval context, so an empty
		// knowledge base is degraded rather than fatal.
		b.logger.Warn("no chunks could be embedded",
			zap.String("job_id", jobID.String()),
			zap.Int("pages", len(pages)),
			zap.Int("failed_chunks", failed))
		return 0, nil
	}

	if err := b.store.InsertChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}

	b.logger.Info("knowledge base built",
		zap.String("job_id", jobID.String()),
		zap.Int("chunks", len(chunks)),
		zap.Int("failed_chunks", failed))

	return len(chunks), nil
}

// Package kb - store.go defines the chunk store boundary.
package kb

import (
	"context"

	"github.com/google/uuid"

	"github.com/jonathan/site-auditor/internal/types"
)

// ChunkStore persists and searches document chunks. Chunks are scoped to a
// job and never mutated after insertion; reuse copies them under a new job.
type ChunkStore interface {
	// InsertChunks stores chunks with their embeddings.
	InsertChunks(ctx context.Context, chunks []types.Chunk) error

	// NearestChunks returns up to k chunks of the job ranked by similarity
	// to the embedding, dropping results below minSimilarity.
	NearestChunks(ctx context.Context, jobID uuid.UUID, embedding []float32, k int, minSimilarity float64) ([]types.Chunk, error)

	// CopyChunks duplicates one job's chunks under another job id and
	// returns how many were copied.
	CopyChunks(ctx context.Context, fromJob, toJob uuid.UUID) (int, error)

	// CountChunks returns the number of stored chunks for a job.
	CountChunks(ctx context.Context, jobID uuid.UUID) (int, error)
}

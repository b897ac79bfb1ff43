// Package kb - retriever.go answers analysis queries from the knowledge base.
package kb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/site-auditor/internal/llm"
	"github.com/jonathan/site-auditor/internal/types"
)

// DefaultTopK is the number of chunks retrieved per analysis query.
const DefaultTopK = 6

// DefaultMinSimilarity is the cosine similarity floor below which retrieved
// chunks are considered noise.
const DefaultMinSimilarity = 0.3

// Retriever runs similarity search over a job's chunks.
type Retriever struct {
	client        llm.Client
	store         ChunkStore
	topK          int
	minSimilarity float64
	logger        *zap.Logger
}

// NewRetriever creates a retriever. topK and minSimilarity of zero use the
// defaults.
func NewRetriever(client llm.Client, store ChunkStore, topK int, minSimilarity float64, logger *zap.Logger) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		client:        client,
		store:         store,
		topK:          topK,
		minSimilarity: minSimilarity,
		logger:        logger,
	}
}

// Retrieve embeds the query and returns the job's most similar chunks.
// An empty result is valid: nothing cleared the similarity floor.
func (r *Retriever) Retrieve(ctx context.Context, jobID uuid.UUID, query string, k int) ([]types.Chunk, error) {
	if k <= 0 {
		k = r.topK
	}

	embedding, err := r.client.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chunks, err := r.store.NearestChunks(ctx, jobID, embedding, k, r.minSimilarity)
	if err != nil {
		return nil, fmt.Errorf("nearest chunks: %w", err)
	}

	r.logger.Debug("retrieval complete",
		zap.String("job_id", jobID.String()),
		zap.String("query", query),
		zap.Int("hits", len(chunks)))

	return chunks, nil
}

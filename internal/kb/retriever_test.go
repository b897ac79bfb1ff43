package kb

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/site-auditor/internal/types"
)

func seedChunks(t *testing.T, store *MemoryStore, jobID uuid.UUID) {
	t.Helper()
	err := store.InsertChunks(context.Background(), []types.Chunk{
		{ID: uuid.New(), JobID: jobID, URL: "https://example.de/versand", Content: "Versandkosten und Lieferzeiten", Embedding: []float32{1, 0, 0}},
		{ID: uuid.New(), JobID: jobID, URL: "https://example.de/agb", Content: "Allgemeine Geschäftsbedingungen", Embedding: []float32{0.9, 0.1, 0}},
		{ID: uuid.New(), JobID: jobID, URL: "https://example.de/blog", Content: "Neues aus der Werkstatt", Embedding: []float32{0, 0, 1}},
	})
	require.NoError(t, err)
}

func TestRetrieverRanksBySimilarity(t *testing.T) {
	store := NewMemoryStore()
	jobID := uuid.New()
	seedChunks(t, store, jobID)

	client := &mockLLMClient{
		embedFunc: func(_ context.Context, _ string) ([]float32, error) {
			return []float32{1, 0, 0}, nil
		},
	}
	retriever := NewRetriever(client, store, 2, 0.5, nil)

	chunks, err := retriever.Retrieve(context.Background(), jobID, "Was kostet der Versand?", 0)
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, "https://example.de/versand", chunks[0].URL)
	assert.Equal(t, "https://example.de/agb", chunks[1].URL)
	assert.Greater(t, chunks[0].Similarity, chunks[1].Similarity)
}

func TestRetrieverEmptyBelowThreshold(t *testing.T) {
	store := NewMemoryStore()
	jobID := uuid.New()
	seedChunks(t, store, jobID)

	client := &mockLLMClient{
		embedFunc: func(_ context.Context, _ string) ([]float32, error) {
			// Orthogonal to everything but the blog chunk.
			return []float32{0, 1, 0}, nil
		},
	}
	retriever := NewRetriever(client, store, 5, 0.9, nil)

	chunks, err := retriever.Retrieve(context.Background(), jobID, "irrelevant", 0)

	// Nothing clears the floor: empty result, no error.
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestRetrieverScopedToJob(t *testing.T) {
	store := NewMemoryStore()
	jobA := uuid.New()
	jobB := uuid.New()
	seedChunks(t, store, jobA)

	retriever := NewRetriever(&mockLLMClient{}, store, 5, 0.1, nil)

	chunks, err := retriever.Retrieve(context.Background(), jobB, "Versand", 0)
	require.NoError(t, err)
	assert.Empty(t, chunks, "chunks of other jobs must not leak")
}

func TestRetrieverEmbedFailure(t *testing.T) {
	client := &mockLLMClient{
		embedFunc: func(_ context.Context, _ string) ([]float32, error) {
			return nil, assert.AnError
		},
	}
	retriever := NewRetriever(client, NewMemoryStore(), 5, 0.1, nil)

	_, err := retriever.Retrieve(context.Background(), uuid.New(), "query", 0)
	assert.Error(t, err)
}

func TestMemoryStoreCopyChunks(t *testing.T) {
	store := NewMemoryStore()
	fromJob := uuid.New()
	toJob := uuid.New()
	seedChunks(t, store, fromJob)

	copied, err := store.CopyChunks(context.Background(), fromJob, toJob)
	require.NoError(t, err)
	assert.Equal(t, 3, copied)

	fromCount, _ := store.CountChunks(context.Background(), fromJob)
	toCount, _ := store.CountChunks(context.Background(), toJob)
	assert.Equal(t, fromCount, toCount)

	// Copies carry the new job id and fresh chunk ids.
	chunks, err := store.NearestChunks(context.Background(), toJob, []float32{1, 0, 0}, 10, 0)
	require.NoError(t, err)
	for _, chunk := range chunks {
		assert.Equal(t, toJob, chunk.JobID)
	}
}

// Package kb - memory.go provides an in-memory chunk store for runs without
// a database (one-shot CLI audits) and for tests.
package kb

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jonathan/site-auditor/internal/types"
)

// MemoryStore is a ChunkStore backed by process memory. Safe for concurrent
// use. Contents vanish with the process.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[uuid.UUID][]types.Chunk
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[uuid.UUID][]types.Chunk)}
}

// InsertChunks stores the chunks under their job ids.
func (m *MemoryStore) InsertChunks(_ context.Context, chunks []types.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, chunk := range chunks {
		m.chunks[chunk.JobID] = append(m.chunks[chunk.JobID], chunk)
	}
	return nil
}

// NearestChunks ranks the job's chunks by cosine similarity.
func (m *MemoryStore) NearestChunks(_ context.Context, jobID uuid.UUID, embedding []float32, k int, minSimilarity float64) ([]types.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.chunks[jobID]
	scored := make([]types.Chunk, 0, len(stored))
	for _, chunk := range stored {
		similarity := cosineSimilarity(embedding, chunk.Embedding)
		if similarity < minSimilarity {
			continue
		}
		chunk.Similarity = similarity
		scored = append(scored, chunk)
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// CopyChunks duplicates one job's chunks under a new job id with fresh
// chunk ids.
func (m *MemoryStore) CopyChunks(_ context.Context, fromJob, toJob uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	source := m.chunks[fromJob]
	copied := make([]types.Chunk, 0, len(source))
	for _, chunk := range source {
		chunk.ID = uuid.New()
		chunk.JobID = toJob
		copied = append(copied, chunk)
	}
	m.chunks[toJob] = append(m.chunks[toJob], copied...)
	return len(copied), nil
}

// CountChunks returns the number of chunks stored for a job.
func (m *MemoryStore) CountChunks(_ context.Context, jobID uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks[jobID]), nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

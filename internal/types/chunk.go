package types

import "github.com/google/uuid"

// Chunk is a bounded slice of a page's text stored together with its
// embedding vector. Chunks belong to exactly one audit job; reusing a cached
// crawl copies chunks to the new job id rather than sharing rows.
type Chunk struct {
	ID         uuid.UUID      `json:"id,omitempty"`
	JobID      uuid.UUID      `json:"job_id"`
	URL        string         `json:"url"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Embedding  []float32      `json:"-"`
	Similarity float64        `json:"similarity,omitempty"`
}

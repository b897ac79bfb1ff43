package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/site-auditor/internal/types"
)

// encodeVector renders an embedding as a pgvector literal like [0.1,0.2,0.3]
func encodeVector(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// InsertChunks stores document chunks with their embeddings
func (db *DB) InsertChunks(ctx context.Context, chunks []types.Chunk) error {
	for _, chunk := range chunks {
		var metadata []byte
		if chunk.Metadata != nil {
			var err error
			metadata, err = json.Marshal(chunk.Metadata)
			if err != nil {
				return fmt.Errorf("failed to marshal chunk metadata: %w", err)
			}
		}

		_, err := db.pool.Exec(ctx,
			`INSERT INTO document_chunks (id, job_id, url, content, metadata, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6::vector)`,
			chunk.ID, chunk.JobID, chunk.URL, chunk.Content, metadata, encodeVector(chunk.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	return nil
}

// NearestChunks returns up to k chunks of the job ranked by cosine
// similarity to the embedding, dropping results below minSimilarity
func (db *DB) NearestChunks(ctx context.Context, jobID uuid.UUID, embedding []float32, k int, minSimilarity float64) ([]types.Chunk, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, job_id, url, content, metadata, 1 - (embedding <=> $2::vector) AS similarity
		 FROM document_chunks
		 WHERE job_id = $1 AND 1 - (embedding <=> $2::vector) >= $3
		 ORDER BY embedding <=> $2::vector
		 LIMIT $4`,
		jobID, encodeVector(embedding), minSimilarity, k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var chunk types.Chunk
		var metadata []byte
		if err := rows.Scan(&chunk.ID, &chunk.JobID, &chunk.URL, &chunk.Content, &metadata, &chunk.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode chunk metadata: %w", err)
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// CopyChunks duplicates one job's chunks under another job id and returns
// how many rows were copied
func (db *DB) CopyChunks(ctx context.Context, fromJob, toJob uuid.UUID) (int, error) {
	tag, err := db.pool.Exec(ctx,
		`INSERT INTO document_chunks (id, job_id, url, content, metadata, embedding)
		 SELECT gen_random_uuid(), $2, url, content, metadata, embedding
		 FROM document_chunks
		 WHERE job_id = $1`,
		fromJob, toJob,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to copy chunks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// CountChunks returns the number of stored chunks for a job
func (db *DB) CountChunks(ctx context.Context, jobID uuid.UUID) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM document_chunks WHERE job_id = $1`,
		jobID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// Package knowledge stores embedded text chunks in PostgreSQL + pgvector and
// serves similarity queries, partitioned by channel.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// VectorDimension is the embedding width stored in the chunks table.
// Must match the vector(N) column in the schema and the embedder's
// OutputDimensionality.
const VectorDimension int32 = 768

// Result is one similarity hit. Distance is cosine distance; smaller is
// closer. Callers convert to a similarity score as 1 − distance.
type Result struct {
	Content  string
	Metadata map[string]string
	Distance float32
}

// Index is the channel-partitioned similarity index.
//
// Index is safe for concurrent use by multiple goroutines. Reads and writes
// for different channels never contend beyond what PostgreSQL imposes.
type Index struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewIndex creates an Index backed by the given pool.
func NewIndex(pool *pgxpool.Pool, logger *slog.Logger) (*Index, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{pool: pool, logger: logger}, nil
}

// Upsert writes embedded chunks into a channel's partition. texts, vectors
// and metadatas must be parallel slices. The write is transactional: either
// all chunks land or none do.
func (ix *Index) Upsert(ctx context.Context, channelID uuid.UUID, texts []string, vectors [][]float32, metadatas []map[string]string) error {
	if len(texts) != len(vectors) || len(texts) != len(metadatas) {
		return fmt.Errorf("mismatched lengths: %d texts, %d vectors, %d metadatas",
			len(texts), len(vectors), len(metadatas))
	}
	if len(texts) == 0 {
		return nil
	}

	tx, err := ix.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, text := range texts {
		metaJSON, err := json.Marshal(metadatas[i])
		if err != nil {
			return fmt.Errorf("marshaling metadata: %w", err)
		}
		vec := pgvector.NewVector(vectors[i])
		if _, err := tx.Exec(ctx,
			`INSERT INTO chunks (id, channel_id, content, embedding, metadata)
			 VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), channelID, text, vec, metaJSON); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}

	ix.logger.Debug("chunks stored", "channel_id", channelID, "count", len(texts))
	return nil
}

// Query returns the k nearest chunks to the query vector within a channel's
// partition, ordered by ascending cosine distance.
func (ix *Index) Query(ctx context.Context, channelID uuid.UUID, vector []float32, k int) ([]Result, error) {
	vec := pgvector.NewVector(vector)
	rows, err := ix.pool.Query(ctx,
		`SELECT content, metadata, embedding <=> $2 AS distance
		 FROM chunks
		 WHERE channel_id = $1
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		channelID, vec, k)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var metaJSON []byte
		var distance float64
		if err := rows.Scan(&r.Content, &metaJSON, &distance); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		r.Distance = float32(distance)
		if err := json.Unmarshal(metaJSON, &r.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Count returns the number of chunks stored for a channel.
func (ix *Index) Count(ctx context.Context, channelID uuid.UUID) (int, error) {
	var n int
	err := ix.pool.QueryRow(ctx,
		`SELECT count(*) FROM chunks WHERE channel_id = $1`, channelID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Clear removes all chunks from a channel's partition.
func (ix *Index) Clear(ctx context.Context, channelID uuid.UUID) error {
	_, err := ix.pool.Exec(ctx,
		`DELETE FROM chunks WHERE channel_id = $1`, channelID)
	if err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}
	return nil
}

package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/pgvector/pgvector-go"

	"github.com/hearthd/hearth-platform/pkg/postgres"
)

// EmbeddingDim is the vector width produced by the embedding model
const EmbeddingDim = 768

// Metadata is the free-form annotation stored alongside a vector
type Metadata map[string]interface{}

// Match is one result of a similarity query, highest similarity first
type Match struct {
	ID         string   `json:"id"`
	Similarity float64  `json:"similarity"`
	Metadata   Metadata `json:"metadata"`
}

// VectorIndex stores pattern embeddings and answers similarity queries
type VectorIndex interface {
	// Upsert inserts or replaces the vector and metadata for an id
	Upsert(ctx context.Context, id string, vector []float32, metadata Metadata) error

	// Query returns up to topK nearest matches by cosine similarity
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
}

// PatternIndex is the pgvector-backed index over the pattern_vectors table
type PatternIndex struct {
	db postgres.Client
}

// NewPatternIndex creates a pgvector-backed index
func NewPatternIndex(db postgres.Client) *PatternIndex {
	return &PatternIndex{db: db}
}

// EnsureSchema creates the pattern_vectors table and its index if missing
func (i *PatternIndex) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS pattern_vectors (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, EmbeddingDim),
		`CREATE INDEX IF NOT EXISTS pattern_vectors_embedding_idx
			ON pattern_vectors USING hnsw (embedding vector_cosine_ops)`,
	}

	for _, stmt := range statements {
		if _, err := i.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure pattern_vectors schema: %w", err)
		}
	}
	return nil
}

// Upsert inserts or replaces a pattern vector
func (i *PatternIndex) Upsert(ctx context.Context, id string, vector []float32, metadata Metadata) error {
	if len(vector) != EmbeddingDim {
		return fmt.Errorf("expected %d-dimensional vector, got %d", EmbeddingDim, len(vector))
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal vector metadata: %w", err)
	}

	_, err = i.db.Exec(ctx, `
		INSERT INTO pattern_vectors (id, embedding, metadata, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		SET embedding = EXCLUDED.embedding,
		    metadata = EXCLUDED.metadata,
		    updated_at = now()`,
		id, pgvector.NewVector(vector), metaJSON)
	if err != nil {
		return fmt.Errorf("failed to upsert pattern vector %s: %w", id, err)
	}
	return nil
}

// Query returns the topK nearest patterns by cosine similarity
func (i *PatternIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	rows, err := i.db.Query(ctx, `
		SELECT id, metadata, 1 - (embedding <=> $1) AS similarity
		FROM pattern_vectors
		ORDER BY embedding <=> $1
		LIMIT $2`,
		pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query pattern vectors: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m        Match
			metaJSON sql.RawBytes
		)
		if err := rows.Scan(&m.ID, &metaJSON, &m.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan pattern vector row: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &m.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", m.ID, err)
			}
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// InMemoryIndex is a map-backed VectorIndex for tests and degraded mode
type InMemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	vector   []float32
	metadata Metadata
}

// NewInMemoryIndex creates an empty in-memory index
func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{entries: make(map[string]memoryEntry)}
}

func (i *InMemoryIndex) Upsert(ctx context.Context, id string, vector []float32, metadata Metadata) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries[id] = memoryEntry{
		vector:   append([]float32(nil), vector...),
		metadata: metadata,
	}
	return nil
}

func (i *InMemoryIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	matches := make([]Match, 0, len(i.entries))
	for id, entry := range i.entries {
		matches = append(matches, Match{
			ID:         id,
			Similarity: cosineSimilarity(vector, entry.vector),
			Metadata:   entry.metadata,
		})
	}

	sort.Slice(matches, func(a, b int) bool {
		return matches[a].Similarity > matches[b].Similarity
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len returns the number of stored vectors
func (i *InMemoryIndex) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
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

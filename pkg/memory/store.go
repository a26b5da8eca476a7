package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind partitions the memory into independent collections.
type Kind string

const (
	// KindQueryExample stores question -> successful query pairs
	KindQueryExample Kind = "query_example"
	// KindConversationContext stores per-session exchange summaries
	KindConversationContext Kind = "conversation_context"
	// KindDataSchema stores index schema descriptions
	KindDataSchema Kind = "data_schema"
)

// Record is one memory entry. Payload carries kind-specific structured
// data (the query body for examples, field list for schemas, ...).
type Record struct {
	ID        uuid.UUID              `json:"id"`
	Kind      Kind                   `json:"kind"`
	Document  string                 `json:"document"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	IndexName string                 `json:"index_name,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// ScoredRecord pairs a record with its cosine similarity to a query vector.
type ScoredRecord struct {
	Record     *Record `json:"record"`
	Similarity float64 `json:"similarity"`
}

// Stats summarizes the memory contents per collection.
type Stats struct {
	Counts map[Kind]int64 `json:"counts"`
	Total  int64          `json:"total"`
}

// Store is the semantic memory contract. Implementations index records
// by embedding and retrieve the nearest ones above a similarity threshold.
type Store interface {
	Save(ctx context.Context, record *Record, embedding []float32) error
	SearchSimilar(ctx context.Context, kind Kind, embedding []float32, limit int, threshold float64) ([]*ScoredRecord, error)
	DeleteBySession(ctx context.Context, sessionID string) error
	// DeleteByKindIndex removes a kind's records for one index, giving
	// upsert semantics to per-index facts like schema descriptions.
	DeleteByKindIndex(ctx context.Context, kind Kind, indexName string) error
	Stats(ctx context.Context) (*Stats, error)
}

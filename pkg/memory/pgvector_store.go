package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// PgVectorStore implements Store on PostgreSQL with the pgvector extension.
type PgVectorStore struct {
	db *gorm.DB
}

func NewPgVectorStore(db *gorm.DB) *PgVectorStore {
	return &PgVectorStore{db: db}
}

// Migrate creates the memory table and the vector extension if needed.
func (s *PgVectorStore) Migrate() error {
	if err := s.db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return err
	}
	return s.db.AutoMigrate(&MemoryRecordModel{})
}

func (s *PgVectorStore) Save(ctx context.Context, record *Record, embedding []float32) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	m, err := toModel(record, embedding)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	record.CreatedAt = m.CreatedAt
	return nil
}

// SearchSimilar returns records of the given kind whose cosine similarity
// to the query vector is at least threshold, best matches first.
func (s *PgVectorStore) SearchSimilar(ctx context.Context, kind Kind, embedding []float32, limit int, threshold float64) ([]*ScoredRecord, error) {
	if limit <= 0 {
		limit = 5
	}

	// Cosine distance in pgvector is 1 - cosine_similarity, so
	// 1 - (embedding_value <=> query_vector) = cosine_similarity
	type result struct {
		MemoryRecordModel
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := s.db.WithContext(ctx).
		Table("memory_records").
		Select("memory_records.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("kind = ?", string(kind)).
		Where("deleted_at IS NULL").
		Where("1 - (embedding_value <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*ScoredRecord, len(results))
	for i, res := range results {
		scored[i] = &ScoredRecord{
			Record:     toRecord(&res.MemoryRecordModel),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}

func (s *PgVectorStore) DeleteByKindIndex(ctx context.Context, kind Kind, indexName string) error {
	return s.db.WithContext(ctx).
		Where("kind = ? AND index_name = ?", string(kind), indexName).
		Delete(&MemoryRecordModel{}).Error
}

func (s *PgVectorStore) DeleteBySession(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&MemoryRecordModel{}).Error
}

func (s *PgVectorStore) Stats(ctx context.Context) (*Stats, error) {
	type row struct {
		Kind  string
		Count int64
	}
	var rows []row

	err := s.db.WithContext(ctx).
		Table("memory_records").
		Select("kind, count(*) as count").
		Where("deleted_at IS NULL").
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &Stats{Counts: map[Kind]int64{}}
	for _, r := range rows {
		stats.Counts[Kind(r.Kind)] = r.Count
		stats.Total += r.Count
	}
	return stats, nil
}

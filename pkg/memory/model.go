package memory

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MemoryRecordModel struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Kind           string          `gorm:"type:varchar(32);not null;index"`
	Document       string          `gorm:"type:text"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector(768)"` // text-embedding-004 uses 768 dimensions
	Payload        datatypes.JSON  `gorm:"type:jsonb"`
	SessionId      string          `gorm:"type:varchar(64);index"`
	IndexName      string          `gorm:"type:varchar(255);index"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt  `gorm:"index"`
}

func (MemoryRecordModel) TableName() string {
	return "memory_records"
}

func toModel(record *Record, embedding []float32) (*MemoryRecordModel, error) {
	var payload datatypes.JSON
	if record.Payload != nil {
		raw, err := json.Marshal(record.Payload)
		if err != nil {
			return nil, err
		}
		payload = datatypes.JSON(raw)
	}
	return &MemoryRecordModel{
		Id:             record.ID,
		Kind:           string(record.Kind),
		Document:       record.Document,
		EmbeddingValue: pgvector.NewVector(embedding),
		Payload:        payload,
		SessionId:      record.SessionID,
		IndexName:      record.IndexName,
	}, nil
}

func toRecord(m *MemoryRecordModel) *Record {
	record := &Record{
		ID:        m.Id,
		Kind:      Kind(m.Kind),
		Document:  m.Document,
		SessionID: m.SessionId,
		IndexName: m.IndexName,
		CreatedAt: m.CreatedAt,
	}
	if len(m.Payload) > 0 {
		var payload map[string]interface{}
		if err := json.Unmarshal(m.Payload, &payload); err == nil {
			record.Payload = payload
		}
	}
	return record
}

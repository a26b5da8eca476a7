package service

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"datachat-be/internal/pkg/logger"
	"datachat-be/pkg/embedding"
	"datachat-be/pkg/memory"
)

// memoryWritePayload mirrors events.NewMemoryWriteEvent's payload.
type memoryWritePayload struct {
	Kind      string                 `json:"kind"`
	Document  string                 `json:"document"`
	Payload   map[string]interface{} `json:"payload"`
	SessionID string                 `json:"session_id"`
	IndexName string                 `json:"index_name"`
}

// MemoryWriterService consumes memory-write events off the in-process
// bus, embeds the document, and appends it to semantic memory. Keeping
// this off the request path means a slow embedding call never delays a
// turn.
type MemoryWriterService struct {
	pubSub            *gochannel.GoChannel
	memoryStore       memory.Store
	embeddingProvider embedding.EmbeddingProvider
	logger            logger.ILogger
}

func NewMemoryWriterService(
	pubSub *gochannel.GoChannel,
	memoryStore memory.Store,
	embeddingProvider embedding.EmbeddingProvider,
	log logger.ILogger,
) *MemoryWriterService {
	return &MemoryWriterService{
		pubSub:            pubSub,
		memoryStore:       memoryStore,
		embeddingProvider: embeddingProvider,
		logger:            log,
	}
}

func (s *MemoryWriterService) Consume(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, TopicMemoryWrite)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (s *MemoryWriterService) processMessage(ctx context.Context, msg *message.Message) {
	var payload memoryWritePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.logger.Error("memory-writer", "unmarshal failed", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // invalid forever, do not retry
		return
	}

	if payload.Document == "" {
		msg.Ack()
		return
	}

	resp, err := s.embeddingProvider.Generate(payload.Document, "RETRIEVAL_DOCUMENT")
	if err != nil {
		s.logger.Warn("memory-writer", "embedding failed", map[string]interface{}{
			"kind":  payload.Kind,
			"error": err.Error(),
		})
		msg.Nack() // transient, retry
		return
	}

	record := &memory.Record{
		Kind:      memory.Kind(payload.Kind),
		Document:  payload.Document,
		Payload:   payload.Payload,
		SessionID: payload.SessionID,
		IndexName: payload.IndexName,
	}
	if err := s.memoryStore.Save(ctx, record, resp.Embedding.Values); err != nil {
		s.logger.Warn("memory-writer", "save failed", map[string]interface{}{
			"kind":  payload.Kind,
			"error": err.Error(),
		})
		msg.Nack()
		return
	}

	s.logger.Debug("memory-writer", "record stored", map[string]interface{}{
		"kind":  payload.Kind,
		"index": payload.IndexName,
	})
	msg.Ack()
}

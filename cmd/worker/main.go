package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"datachat-be/internal/config"
	"datachat-be/internal/pkg/logger"
	"datachat-be/pkg/database"
	"datachat-be/pkg/embedding"
	"datachat-be/pkg/events"
	"datachat-be/pkg/memory"
	pktNats "datachat-be/pkg/nats"
)

// Standalone memory writer. Runs the semantic-memory write-back off the
// NATS stream instead of the in-process bus, for deployments where the
// writer is scaled apart from the API instances.
func main() {
	cfg := config.Load()
	sysLogger := logger.NewZapLogger("logs/worker.log", cfg.App.Environment == "production")
	defer sysLogger.Sync()

	if cfg.App.NatsURL == "" {
		log.Fatal("NATS_URL is required for the worker")
	}
	if cfg.Memory.Connection == "" {
		log.Fatal("DB_CONNECTION_STRING is required for the worker")
	}

	db, err := database.NewGormDBFromDSN(cfg.Memory.Connection)
	if err != nil {
		log.Fatalf("Unable to connect to memory store DB: %v", err)
	}
	memoryStore := memory.NewPgVectorStore(db)
	if err := memoryStore.Migrate(); err != nil {
		log.Fatalf("Memory store migration failed: %v", err)
	}

	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Ai.GeminiAPIKey)
	}

	subscriber, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Fatalf("Unable to connect to NATS: %v", err)
	}
	defer subscriber.Close()

	handler := func(ctx context.Context, event events.Event) error {
		payload := event.Payload()
		document, _ := payload["document"].(string)
		if document == "" {
			return nil
		}
		kind, _ := payload["kind"].(string)
		sessionID, _ := payload["session_id"].(string)
		indexName, _ := payload["index_name"].(string)
		extra, _ := payload["payload"].(map[string]interface{})

		resp, err := embeddingProvider.Generate(document, "RETRIEVAL_DOCUMENT")
		if err != nil {
			return err
		}

		record := &memory.Record{
			Kind:      memory.Kind(kind),
			Document:  document,
			Payload:   extra,
			SessionID: sessionID,
			IndexName: indexName,
		}
		if err := memoryStore.Save(ctx, record, resp.Embedding.Values); err != nil {
			return err
		}

		sysLogger.Debug("worker", "record stored", map[string]interface{}{
			"kind":  kind,
			"index": indexName,
		})
		return nil
	}

	subject := "datachat." + events.TypeMemoryWrite
	if err := subscriber.Subscribe(subject, "memory-writer", handler); err != nil {
		log.Fatalf("Subscribe failed: %v", err)
	}

	log.Println("Memory writer worker running. Press Ctrl+C to stop.")
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down worker...")
}

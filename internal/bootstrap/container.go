package bootstrap

import (
	"context"
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"datachat-be/internal/config"
	"datachat-be/internal/controller"
	"datachat-be/internal/pkg/logger"
	"datachat-be/internal/service"
	"datachat-be/internal/websocket"
	"datachat-be/pkg/agent"
	"datachat-be/pkg/agent/exec"
	"datachat-be/pkg/agent/insight"
	"datachat-be/pkg/agent/intent"
	"datachat-be/pkg/agent/synth"
	"datachat-be/pkg/agent/viz"
	"datachat-be/pkg/cache"
	"datachat-be/pkg/embedding"
	"datachat-be/pkg/llm"
	"datachat-be/pkg/llm/factory"
	"datachat-be/pkg/memory"

	pktNats "datachat-be/pkg/nats"
	"datachat-be/pkg/search"
)

type Container struct {
	// Controllers
	ChatController     controller.IChatController
	SearchController   controller.ISearchController
	InsightsController controller.IInsightsController
	HealthController   controller.IHealthController

	// Background services (exposed for main.go to run)
	MemoryWriterService    *service.MemoryWriterService
	SchemaBootstrapService *service.SchemaBootstrapService

	// WebSockets
	WebSocketHandler *websocket.Handler
	WebSocketHub     *websocket.Hub

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// Embedding provider
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Ai.GeminiAPIKey)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	// LLM provider
	llmProvider, err := factory.NewProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.GeminiAPIKey,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.LLMModel,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// NATS (optional)
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
			natsPub = nil
		}
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)

	var sessionStore cache.SessionStore
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Sessions held in process memory", err)
		rdb = nil
		sessionStore = cache.NewMemorySessionStore(cfg.Cache.SessionTTL)
	} else {
		sessionStore = cache.NewRedisSessionStore(rdb, cfg.Cache.SessionTTL)
	}

	// Search engine
	searchClient := search.NewClient(
		cfg.Search.URL,
		cfg.Search.Username,
		cfg.Search.Password,
		cfg.Search.MaxQuerySize,
		cfg.Search.RequestTimeout,
	)

	// Semantic memory (optional, requires Postgres with pgvector)
	var memoryStore memory.Store
	if db != nil {
		pgStore := memory.NewPgVectorStore(db)
		if err := pgStore.Migrate(); err != nil {
			log.Printf("[WARN] Memory store migration failed: %v. Running without semantic memory", err)
		} else {
			memoryStore = pgStore
		}
	}

	queryCache := cache.NewQueryCache(cfg.Cache.QueryTTL)
	eventPublisher := service.NewEventPublisher(pubSub, natsPub, sysLogger)

	// Session profiles live as long as the sessions they describe
	insightTracker := insight.NewTracker(cfg.Cache.SessionTTL)

	// Pipeline stages
	resolver := intent.NewResolver(llmProvider, sysLogger)
	synthesizer := synth.NewSynthesizer(llmProvider, queryCache, sysLogger, cfg.Search.MaxQuerySize)
	coordinator := exec.NewCoordinator(searchClient, sysLogger)
	recommender := viz.NewRecommender(viz.Kind(cfg.Pipeline.DefaultChartKind))

	pipeline := agent.NewPipeline(
		resolver,
		synthesizer,
		coordinator,
		recommender,
		memoryStore,
		embeddingProvider,
		eventPublisher,
		insightTracker,
		sysLogger,
		agent.Config{
			Timeout:             cfg.Pipeline.Timeout,
			TopK:                cfg.Memory.TopK,
			SimilarityThreshold: cfg.Memory.SimilarityThreshold,
			HistoryWindow:       cfg.Pipeline.HistoryWindow,
			MaxMessageChars:     cfg.Transport.MaxMessageChars,
		},
	)

	chatService := service.NewChatService(
		pipeline,
		sessionStore,
		searchClient,
		memoryStore,
		sysLogger,
		cfg.Search.DefaultIndex,
	)

	// The in-process writer and the NATS worker consume the same events;
	// run only one of them or every record lands twice
	var memoryWriter *service.MemoryWriterService
	if memoryStore != nil && natsPub == nil {
		memoryWriter = service.NewMemoryWriterService(pubSub, memoryStore, embeddingProvider, sysLogger)
	} else if memoryStore != nil {
		log.Printf("[INFO] NATS configured; memory write-back left to the worker consumer")
	}

	var schemaBootstrap *service.SchemaBootstrapService
	if memoryStore != nil {
		schemaBootstrap = service.NewSchemaBootstrapService(searchClient, memoryStore, embeddingProvider, sysLogger)
	}

	// WebSocket hub with its own log file, kept apart from request logs
	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	wsHandler := websocket.NewHandler(wsHub, chatService, chatService.ResolveSession, cfg, wsLogger)

	healthChecks := map[string]controller.Check{
		"search": searchClient.Ping,
		"cache": func(ctx context.Context) error {
			if rdb == nil {
				return nil // in-process store is always reachable
			}
			return rdb.Ping(ctx).Err()
		},
		"llm": func(ctx context.Context) error {
			_, err := llmProvider.Generate(ctx, "ping", llm.WithMaxTokens(1))
			return err
		},
	}

	return &Container{
		ChatController:     controller.NewChatController(chatService),
		SearchController:   controller.NewSearchController(searchClient),
		InsightsController: controller.NewInsightsController(chatService, queryCache, memoryStore, embeddingProvider, insightTracker),
		HealthController:   controller.NewHealthController(healthChecks),

		MemoryWriterService:    memoryWriter,
		SchemaBootstrapService: schemaBootstrap,

		WebSocketHandler: wsHandler,
		WebSocketHub:     wsHub,

		Logger: sysLogger,
	}
}

package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Search    SearchConfig
	Memory    MemoryConfig
	Cache     CacheConfig
	Pipeline  PipelineConfig
	Transport TransportConfig
	Ai        AIConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	OtlpEndpoint       string
}

type SearchConfig struct {
	URL      string
	Username string
	Password string
	// Per-attempt timeout for a single search round trip.
	RequestTimeout time.Duration
	MaxQuerySize   int
	DefaultIndex   string
}

type MemoryConfig struct {
	Connection          string
	SimilarityThreshold float64
	TopK                int
}

type CacheConfig struct {
	QueryTTL   time.Duration
	SessionTTL time.Duration
}

type PipelineConfig struct {
	Timeout          time.Duration
	DefaultChartKind string
	HistoryWindow    int
	// "queue" or "reject" for a message arriving while a turn is in flight.
	BusyPolicy string
	QueueDepth int
}

type TransportConfig struct {
	HeartbeatInterval time.Duration
	PingGrace         time.Duration
	ReconnectInitial  time.Duration
	ReconnectMax      time.Duration
	ReconnectAttempts int
	MaxFrameSize      int64
	MaxMessageChars   int
}

type AIConfig struct {
	EmbeddingProvider string // "gemini" or "ollama"
	OllamaBaseURL     string
	OllamaModel       string
	LLMProvider       string // "ollama" or "gemini"
	LLMModel          string
	GeminiAPIKey      string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			OtlpEndpoint:       getEnv("OTLP_ENDPOINT", ""),
		},
		Search: SearchConfig{
			URL:            getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
			Username:       getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:       getEnv("ELASTICSEARCH_PASSWORD", ""),
			RequestTimeout: getEnvAsDuration("SEARCH_REQUEST_TIMEOUT_SECONDS", 10*time.Second),
			MaxQuerySize:   getEnvAsInt("MAX_QUERY_SIZE", 1000),
			DefaultIndex:   getEnv("DEFAULT_INDEX", "sample-sales"),
		},
		Memory: MemoryConfig{
			Connection:          getEnv("DB_CONNECTION_STRING", ""),
			SimilarityThreshold: getEnvAsFloat("SIMILARITY_THRESHOLD", 0.7),
			TopK:                getEnvAsInt("MEMORY_TOP_K", 3),
		},
		Cache: CacheConfig{
			QueryTTL:   getEnvAsDuration("QUERY_CACHE_TTL_SECONDS", 300*time.Second),
			SessionTTL: getEnvAsDuration("SESSION_TTL_SECONDS", 3600*time.Second),
		},
		Pipeline: PipelineConfig{
			Timeout:          getEnvAsDuration("PIPELINE_TIMEOUT_SECONDS", 60*time.Second),
			DefaultChartKind: getEnv("DEFAULT_CHART_TYPE", "bar"),
			HistoryWindow:    getEnvAsInt("HISTORY_WINDOW", 10),
			BusyPolicy:       getEnv("BUSY_POLICY", "queue"),
			QueueDepth:       getEnvAsInt("BUSY_QUEUE_DEPTH", 8),
		},
		Transport: TransportConfig{
			HeartbeatInterval: getEnvAsDuration("HEARTBEAT_INTERVAL_SECONDS", 30*time.Second),
			PingGrace:         getEnvAsDuration("PING_GRACE_SECONDS", 10*time.Second),
			ReconnectInitial:  getEnvAsDuration("RECONNECT_INITIAL_DELAY_SECONDS", 1*time.Second),
			ReconnectMax:      getEnvAsDuration("RECONNECT_MAX_DELAY_SECONDS", 30*time.Second),
			ReconnectAttempts: getEnvAsInt("RECONNECT_MAX_ATTEMPTS", 10),
			MaxFrameSize:      int64(getEnvAsInt("MAX_FRAME_SIZE_BYTES", 16*1024)),
			MaxMessageChars:   getEnvAsInt("MAX_MESSAGE_CHARS", 1000),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "gemini"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "gemini"),
			LLMModel:          getEnv("LLM_MODEL", "gemini-2.0-flash"),
			GeminiAPIKey:      getEnv("GOOGLE_API_KEY", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(value) * time.Second
	}
	return fallback
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP
	Port        string
	GinMode     string
	CORSOrigins []string

	// Gemini / Generative AI
	GeminiAPIKey     string
	EmbeddingsModel  string
	GenerationModel  string
	AITimeoutSeconds int
	Temperature      float64
	MaxOutputTokens  int

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Retrieval
	TopK          int
	MinSimilarity float64

	// Vector index
	VectorBackend    string // "mongo" or "memory"
	VectorDimensions int
	VectorIndexName  string
	CompressChunks   bool

	// MongoDB
	MongoURI string
	DBName   string

	// Redis (cache backend, async queue, rate limiting)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Query cache
	CacheEnabled    bool
	CacheBackend    string // "memory" or "redis"
	CacheTTLSeconds int
	CacheCapacity   int
	CacheDenylist   []string

	// Retries
	MaxRetries       int
	RetryBaseDelayMs int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Async ingestion
	AsyncIngestEnabled bool
	WorkerConcurrency  int

	// Telemetry
	OTELEnabled  bool
	OTELEndpoint string

	// Limits
	MaxQueryLength  int
	MaxDocumentSize int64
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		EmbeddingsModel:  getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GenerationModel:  getEnv("GENERATION_MODEL", "gemini-2.0-flash"),
		AITimeoutSeconds: getEnvInt("AI_TIMEOUT_SECONDS", 60),
		Temperature:      getEnvFloat64("GENERATION_TEMPERATURE", 0.2),
		MaxOutputTokens:  getEnvInt("GENERATION_MAX_TOKENS", 2048),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 800),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 100),

		TopK:          getEnvInt("TOP_K", 5),
		MinSimilarity: getEnvFloat64("MIN_SIMILARITY", -1),

		VectorBackend:    getEnv("VECTOR_BACKEND", "mongo"),
		VectorDimensions: getEnvInt("VECTOR_DIM", 768),
		VectorIndexName:  getEnv("VECTOR_INDEX_NAME", "rag_chunks_vector"),
		CompressChunks:   getEnvBool("COMPRESS_CHUNKS", true),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/rag_platform"),
		DBName:   getEnv("DB_NAME", "rag_platform"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		CacheEnabled:    getEnvBool("CACHE_ENABLED", true),
		CacheBackend:    getEnv("CACHE_BACKEND", "memory"),
		CacheTTLSeconds: getEnvInt("CACHE_TTL_SECONDS", 1800),
		CacheCapacity:   getEnvInt("CACHE_CAPACITY", 100),
		CacheDenylist:   strings.Split(getEnv("CACHE_DENYLIST", "today,now,current,latest,recent"), ","),

		MaxRetries:       getEnvInt("MAX_RETRIES", 3),
		RetryBaseDelayMs: getEnvInt("RETRY_BASE_DELAY_MS", 200),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		AsyncIngestEnabled: getEnvBool("ASYNC_INGEST_ENABLED", true),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 5),

		OTELEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),

		MaxQueryLength:  getEnvInt("MAX_QUERY_LENGTH", 1000),
		MaxDocumentSize: getEnvInt64("MAX_DOCUMENT_SIZE", 20971520), // 20MB
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	// The correct threshold depends on the vector backend and the embedding
	// model, so there is deliberately no default.
	if cfg.MinSimilarity < 0 || cfg.MinSimilarity > 1 {
		return nil, fmt.Errorf("MIN_SIMILARITY is required and must be in [0,1] - set it in .env file")
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be strictly less than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	switch cfg.VectorBackend {
	case "mongo", "memory":
	default:
		return nil, fmt.Errorf("unknown VECTOR_BACKEND: %s", cfg.VectorBackend)
	}

	switch cfg.CacheBackend {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("unknown CACHE_BACKEND: %s", cfg.CacheBackend)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

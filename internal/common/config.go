package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Log       LogConfig
	Database  DatabaseConfig
	Server    ServerConfig
	Scheduler SchedulerConfig
	Writer    WriterConfig
	Catalog   CatalogConfig
	Cache     CacheConfig
	Matching  MatchingConfig
	Embedding EmbeddingConfig
	Events    EventsConfig
	Intake    IntakeConfig
}

// LogConfig controls the slog handler
type LogConfig struct {
	Level  string
	Format string // json | text
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // sqlite | postgres | memory
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string
	GRPCAddr string
}

// SchedulerConfig drives the job tick loop
type SchedulerConfig struct {
	TickInterval    time.Duration
	BatchSize       int
	InterBatchDelay time.Duration
	Retention       time.Duration
}

// WriterConfig controls the batch persistence writer
type WriterConfig struct {
	ChunkSize   int
	MinSpacing  time.Duration
	MaxFailures int
}

// CatalogConfig controls the catalog snapshot cache
type CatalogConfig struct {
	TTL time.Duration
}

// CacheConfig sizes the in-process caches
type CacheConfig struct {
	EmbeddingSize int
	EmbeddingTTL  time.Duration
	ResultSize    int
	ResultTTL     time.Duration
}

// MatchingConfig holds scorer weights
type MatchingConfig struct {
	LexicalWeight  float64
	SemanticWeight float64
}

// EmbeddingConfig holds provider settings
type EmbeddingConfig struct {
	Timeout        time.Duration
	Retries        int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RatePerSecond  float64
	LocalDims      int
	OpenAI         OpenAIConfig
	Ollama         OllamaConfig
}

// OpenAIConfig holds OpenAI embedding configuration
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	BatchSize int
}

// OllamaConfig holds Ollama embedding configuration
type OllamaConfig struct {
	URL       string
	Model     string
	BatchSize int
}

// EventsConfig holds the optional Redis mirror for job events
type EventsConfig struct {
	RedisURL     string
	StreamMaxLen int64
}

// IntakeConfig holds the drop-directory watcher settings
type IntakeConfig struct {
	WatchDir string
	OwnerID  string
	Strategy string
	Debounce time.Duration
}

// LoadConfig loads configuration from a .env file (when present) and environment variables
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			DSN:              getEnv("DB_URL", "file:boq.db?_pragma=busy_timeout(5000)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr: getEnv("GRPC_ADDR", ":8081"),
		},
		Scheduler: SchedulerConfig{
			TickInterval:    getEnvAsDuration("SCHEDULER_TICK", time.Second),
			BatchSize:       getEnvAsInt("SCHEDULER_BATCH_SIZE", 25),
			InterBatchDelay: getEnvAsDuration("SCHEDULER_BATCH_DELAY", 100*time.Millisecond),
			Retention:       getEnvAsDuration("SCHEDULER_RETENTION", 5*time.Minute),
		},
		Writer: WriterConfig{
			ChunkSize:   getEnvAsInt("WRITER_CHUNK_SIZE", 50),
			MinSpacing:  getEnvAsDuration("WRITER_MIN_SPACING", 5*time.Second),
			MaxFailures: getEnvAsInt("WRITER_MAX_FAILURES", 3),
		},
		Catalog: CatalogConfig{
			TTL: getEnvAsDuration("CATALOG_TTL", 5*time.Minute),
		},
		Cache: CacheConfig{
			EmbeddingSize: getEnvAsInt("EMBEDDING_CACHE_SIZE", 10000),
			EmbeddingTTL:  getEnvAsDuration("EMBEDDING_CACHE_TTL", time.Hour),
			ResultSize:    getEnvAsInt("RESULT_CACHE_SIZE", 2000),
			ResultTTL:     getEnvAsDuration("RESULT_CACHE_TTL", 10*time.Minute),
		},
		Matching: MatchingConfig{
			LexicalWeight:  getEnvAsFloat64("HYBRID_LEXICAL_WEIGHT", 0.85),
			SemanticWeight: getEnvAsFloat64("HYBRID_SEMANTIC_WEIGHT", 1.0),
		},
		Embedding: EmbeddingConfig{
			Timeout:        getEnvAsDuration("EMBEDDING_TIMEOUT", 30*time.Second),
			Retries:        getEnvAsInt("EMBEDDING_RETRIES", 3),
			InitialBackoff: getEnvAsDuration("EMBEDDING_BACKOFF", 200*time.Millisecond),
			MaxBackoff:     getEnvAsDuration("EMBEDDING_MAX_BACKOFF", 2*time.Second),
			RatePerSecond:  getEnvAsFloat64("EMBEDDING_RATE", 5),
			LocalDims:      getEnvAsInt("EMBEDDING_LOCAL_DIMS", 256),
			OpenAI: OpenAIConfig{
				APIKey:    getEnv("OPENAI_API_KEY", ""),
				BaseURL:   getEnv("OPENAI_BASE_URL", ""),
				Model:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
				BatchSize: getEnvAsInt("OPENAI_EMBEDDING_BATCH", 2048),
			},
			Ollama: OllamaConfig{
				URL:       getEnv("OLLAMA_URL", ""),
				Model:     getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
				BatchSize: getEnvAsInt("OLLAMA_EMBEDDING_BATCH", 64),
			},
		},
		Events: EventsConfig{
			RedisURL:     getEnv("REDIS_URL", ""),
			StreamMaxLen: int64(getEnvAsInt("EVENTS_STREAM_MAXLEN", 1000)),
		},
		Intake: IntakeConfig{
			WatchDir: getEnv("INTAKE_DIR", ""),
			OwnerID:  getEnv("INTAKE_OWNER", "intake"),
			Strategy: getEnv("INTAKE_STRATEGY", "LEXICAL"),
			Debounce: getEnvAsDuration("INTAKE_DEBOUNCE", 2*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return NewAppError(CodeConfig, "DB_DRIVER must be sqlite, postgres or memory", ErrInvalidInput)
	}
	if c.Database.Driver != "memory" && c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	if c.Scheduler.BatchSize <= 0 {
		return NewAppError(CodeConfig, "SCHEDULER_BATCH_SIZE must be positive", ErrInvalidInput)
	}
	if c.Scheduler.TickInterval <= 0 {
		return NewAppError(CodeConfig, "SCHEDULER_TICK must be positive", ErrInvalidInput)
	}
	if c.Writer.ChunkSize <= 0 {
		return NewAppError(CodeConfig, "WRITER_CHUNK_SIZE must be positive", ErrInvalidInput)
	}
	if c.Matching.LexicalWeight < 0 || c.Matching.LexicalWeight > 1 ||
		c.Matching.SemanticWeight < 0 || c.Matching.SemanticWeight > 1 {
		return NewAppError(CodeConfig, "hybrid weights must be within [0,1]", ErrInvalidInput)
	}
	return nil
}

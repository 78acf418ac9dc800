package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"trust_gateway/internal/models"
)

// Config holds configuration for the gateway.
type Config struct {
	HTTPPort     string
	JWTSecret    []byte
	AdminKeyHash string

	// Catalog is the model catalog snapshot the routing policy works from.
	Catalog []models.ModelDescriptor

	// ReferenceCloudRateUSD overrides the counterfactual per-1K-token cloud
	// rate used when no cloud model is configured. Zero keeps the default.
	ReferenceCloudRateUSD float64

	Database  DatabaseConfig
	Redis     RedisConfig
	Providers ProvidersConfig
	RateLimit RateLimitConfig
	Export    ExportConfig
}

// DatabaseConfig holds audit store connection settings. An empty URL selects
// the in-memory ledger.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings. Disabled means savings
// counters and rate limiting fall back to no-ops and the export queue stays
// in memory.
type RedisConfig struct {
	Enabled      bool
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ProvidersConfig holds dispatcher endpoint settings.
type ProvidersConfig struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OllamaBaseURL string
}

// RateLimitConfig holds the per-session request limit. Zero disables
// rate limiting.
type RateLimitConfig struct {
	RequestsPerMinute int
}

// ExportConfig holds configuration for the audit export pipeline.
type ExportConfig struct {
	Enabled      bool
	BatchSize    int
	BatchTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Destination is "s3" or "file".
	Destination string

	S3Bucket string
	S3Region string
	S3Prefix string
	PodName  string

	FilePathTemplate string
	FileMaxSize      int64
	FileMaxFiles     int
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvInt64(key string, defaultValue int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvFloat(key string, defaultValue float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultValue
	}
	return floatVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// defaultCatalog is used when MODEL_CATALOG is not set: a single free local
// model, which satisfies the local-model invariant out of the box.
func defaultCatalog() []models.ModelDescriptor {
	return []models.ModelDescriptor{
		{ID: "llama3.1:8b", Provider: "ollama", IsLocal: true, CostPerThousandTokensUSD: 0},
	}
}

// loadCatalog parses the MODEL_CATALOG environment variable, a JSON array of
// model descriptors.
func loadCatalog() ([]models.ModelDescriptor, error) {
	raw := os.Getenv("MODEL_CATALOG")
	if raw == "" {
		return defaultCatalog(), nil
	}

	var catalog []models.ModelDescriptor
	if err := json.Unmarshal([]byte(raw), &catalog); err != nil {
		return nil, fmt.Errorf("invalid MODEL_CATALOG: %w", err)
	}
	return catalog, nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	catalog, err := loadCatalog()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort:              getEnvString("HTTP_PORT", "8080"),
		JWTSecret:             []byte(getEnvString("JWT_SECRET", "supersecretkey")),
		AdminKeyHash:          getEnvString("ADMIN_KEY_HASH", ""),
		Catalog:               catalog,
		ReferenceCloudRateUSD: getEnvFloat("REFERENCE_CLOUD_RATE_USD", 0),
		Database: DatabaseConfig{
			URL:             getEnvString("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:      getEnvString("REDIS_ENABLED", "false") == "true",
			Address:      getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Providers: ProvidersConfig{
			OpenAIAPIKey:  getEnvString("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnvString("OPENAI_BASE_URL", ""),
			OllamaBaseURL: getEnvString("OLLAMA_BASE_URL", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 0),
		},
		Export: ExportConfig{
			Enabled:          getEnvString("EXPORT_ENABLED", "false") == "true",
			BatchSize:        getEnvInt("EXPORT_BATCH_SIZE", 100),
			BatchTimeout:     getEnvDuration("EXPORT_BATCH_TIMEOUT", 5*time.Second),
			MaxRetries:       getEnvInt("EXPORT_MAX_RETRIES", 3),
			RetryBackoff:     getEnvDuration("EXPORT_RETRY_BACKOFF", 1*time.Second),
			Destination:      getEnvString("EXPORT_DESTINATION", "file"),
			S3Bucket:         getEnvString("EXPORT_S3_BUCKET", ""),
			S3Region:         getEnvString("EXPORT_S3_REGION", "us-east-1"),
			S3Prefix:         getEnvString("EXPORT_S3_PREFIX", "audit/"),
			PodName:          getEnvString("POD_NAME", "gateway-0"),
			FilePathTemplate: getEnvString("EXPORT_FILE_PATH_TEMPLATE", "/var/log/trust-gateway/audit-%s.jsonl"),
			FileMaxSize:      getEnvInt64("EXPORT_FILE_MAX_SIZE", 10_485_760), // default 10 MB
			FileMaxFiles:     getEnvInt("EXPORT_FILE_MAX_FILES", 5),
		},
	}

	return cfg, nil
}

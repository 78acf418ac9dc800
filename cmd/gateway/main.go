package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"trust_gateway/internal/config"
	"trust_gateway/internal/costs"
	"trust_gateway/internal/dispatch"
	"trust_gateway/internal/engine"
	"trust_gateway/internal/export"
	"trust_gateway/internal/httpapi"
	"trust_gateway/internal/ledger"
	"trust_gateway/internal/queue"
	"trust_gateway/internal/ratelimit"
	"trust_gateway/internal/stats"
	"trust_gateway/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := utils.NewLogger("gateway", utils.Info)

	// Audit store: Postgres when configured, in-memory otherwise
	var auditStore ledger.Ledger
	if cfg.Database.URL != "" {
		pg, err := ledger.NewPostgresLedger(ledger.PostgresConfig{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			log.Fatalf("Failed to initialize audit store: %v", err)
		}
		defer pg.Close()
		auditStore = pg
	} else {
		logger.Warn("DATABASE_URL not set, audit entries are kept in memory only")
		auditStore = ledger.NewMemoryLedger()
	}

	// Redis backs savings counters, rate limiting and the export queue
	var redisClient *redis.Client
	statsService := stats.Service(stats.NewNoopService())
	rateLimiter := ratelimit.Limiter(ratelimit.NewNoopLimiter())
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		defer redisClient.Close()

		statsService = stats.NewRedisService(redisClient)
		if cfg.RateLimit.RequestsPerMinute > 0 {
			rateLimiter = ratelimit.NewSessionLimiter(redisClient, cfg.RateLimit.RequestsPerMinute)
		}
	}

	// Dispatchers
	registry := dispatch.NewRegistry()
	registry.Register("ollama", dispatch.NewOllamaDispatcher(cfg.Providers.OllamaBaseURL))
	if cfg.Providers.OpenAIAPIKey != "" {
		openai, err := dispatch.NewOpenAIDispatcher(cfg.Providers.OpenAIAPIKey, cfg.Providers.OpenAIBaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize OpenAI dispatcher: %v", err)
		}
		registry.Register("openai", openai)
	}

	eng, err := engine.New(engine.Options{
		Catalog:    cfg.Catalog,
		Estimator:  costs.NewEstimator(cfg.ReferenceCloudRateUSD),
		Dispatcher: registry,
		Ledger:     auditStore,
		Stats:      statsService,
	})
	if err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}

	// Export pipeline
	var exporter *export.Worker
	if cfg.Export.Enabled {
		exporter, err = buildExporter(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize export pipeline: %v", err)
		}
		exporter.Start(context.Background())
	}

	mux := httpapi.NewRouter(&httpapi.Dependencies{
		Engine:       eng,
		Ledger:       auditStore,
		Stats:        statsService,
		RateLimit:    rateLimiter,
		Exporter:     exporter,
		JWTSecret:    cfg.JWTSecret,
		AdminKeyHash: cfg.AdminKeyHash,
		Logger:       logger,
	})

	addr := ":" + cfg.HTTPPort
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Trust gateway listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Stop the export worker so the in-flight batch lands before exit
	if exporter != nil {
		if err := exporter.Stop(); err != nil {
			logger.Error("Failed to stop export worker", "error", err)
		}
	}

	logger.Info("Server exited")
}

// buildExporter assembles the queue, dead letter queue and batch writer for
// the configured export destination.
func buildExporter(cfg *config.Config) (*export.Worker, error) {
	queueCfg := queue.DefaultConfig("audit-export")
	queueCfg.BatchSize = cfg.Export.BatchSize
	queueCfg.BatchTimeout = cfg.Export.BatchTimeout
	queueCfg.MaxRetries = cfg.Export.MaxRetries
	queueCfg.RetryBackoff = cfg.Export.RetryBackoff
	queueCfg.UseRedis = cfg.Redis.Enabled

	var q queue.Queue
	var dlq queue.DeadLetterQueue
	var err error
	if queueCfg.UseRedis {
		queueCfg.RedisAddr = cfg.Redis.Address
		queueCfg.RedisPassword = cfg.Redis.Password
		queueCfg.RedisDB = cfg.Redis.DB
		q, err = queue.NewRedisQueue(queueCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create export queue: %w", err)
		}
		dlq, err = queue.NewRedisDeadLetterQueue(queueCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create export DLQ: %w", err)
		}
	} else {
		q = queue.NewMemoryQueue(queueCfg)
		dlq = queue.NewMemoryDeadLetterQueue()
	}

	var writer export.BatchWriter
	switch cfg.Export.Destination {
	case "s3":
		writer, err = export.NewS3Writer(context.Background(),
			cfg.Export.S3Bucket, cfg.Export.S3Region, cfg.Export.S3Prefix, cfg.Export.PodName)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 writer: %w", err)
		}
	case "file":
		writer, err = export.NewFileWriter(
			cfg.Export.FilePathTemplate, cfg.Export.FileMaxSize, cfg.Export.FileMaxFiles)
		if err != nil {
			return nil, fmt.Errorf("failed to create file writer: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown export destination: %s", cfg.Export.Destination)
	}

	return export.NewWorker(q, dlq, writer, queueCfg), nil
}

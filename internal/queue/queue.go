package queue

import (
	"context"
	"time"

	"trust_gateway/internal/models"
)

// Package queue buffers audit entries between the engine and the export
// workers, with two backends:
//
// 1. Memory Queue (in-memory, channel-based):
//   - No persistence, entries lost on restart
//   - Zero external dependencies
//   - For standalone/development deployments
//
// 2. Redis Queue (Redis List-based):
//   - Persistent across restarts
//   - Supports distributed export workers
//
// Entries that repeatedly fail to export land on a dead-letter queue for
// operator inspection instead of being dropped.

// Queue carries audit entries to the export workers.
type Queue interface {
	// Enqueue adds an entry to the queue.
	Enqueue(ctx context.Context, entry *models.AuditEntry) error

	// Dequeue retrieves entries from the queue (up to maxItems).
	// Blocks until at least one entry is available or the context is cancelled.
	Dequeue(ctx context.Context, maxItems int) ([]*models.AuditEntry, error)

	// DequeueWithTimeout retrieves entries with a timeout. Returns whatever
	// arrived before the timeout, possibly an empty slice.
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]*models.AuditEntry, error)

	// Length returns the current queue length.
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue gracefully.
	Close() error
}

// DeadLetterQueue holds entries the export workers gave up on.
type DeadLetterQueue interface {
	// Add stores a failed entry together with the export error.
	Add(ctx context.Context, entry *models.AuditEntry, err error) error

	// List retrieves items from the dead letter queue.
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)

	// Remove removes an item from the dead letter queue.
	Remove(ctx context.Context, id string) error

	// Close shuts down the dead letter queue.
	Close() error
}

// DeadLetterItem is one failed entry with its error context.
type DeadLetterItem struct {
	ID        string             `json:"id"`
	Entry     *models.AuditEntry `json:"entry"`
	Error     string             `json:"error"`
	Timestamp time.Time          `json:"timestamp"`
	Retries   int                `json:"retries"`
}

// Config holds queue configuration.
type Config struct {
	// BatchSize is the maximum number of entries per export batch.
	BatchSize int

	// BatchTimeout is how long to wait before exporting a partial batch.
	BatchTimeout time.Duration

	// MaxRetries is the maximum number of export attempts per batch.
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries.
	RetryBackoff time.Duration

	// UseRedis selects the Redis backend over the in-memory one.
	UseRedis bool

	// RedisAddr is the Redis server address (if UseRedis is true).
	RedisAddr string

	// RedisPassword is the Redis password (if UseRedis is true).
	RedisPassword string

	// RedisDB is the Redis database number (if UseRedis is true).
	RedisDB int

	// QueueName is the name/key for the queue.
	QueueName string
}

// DefaultConfig returns default queue configuration.
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		UseRedis:     false,
		QueueName:    queueName,
	}
}

package queue

import (
	"context"
	"sync"
	"time"

	"trust_gateway/internal/models"
)

// MemoryQueue implements Queue using in-memory channels.
type MemoryQueue struct {
	entries chan *models.AuditEntry
	mu      sync.RWMutex
	closed  bool
	config  *Config
}

// NewMemoryQueue creates a new in-memory queue.
func NewMemoryQueue(config *Config) *MemoryQueue {
	if config == nil {
		config = DefaultConfig("memory")
	}

	return &MemoryQueue{
		entries: make(chan *models.AuditEntry, config.BatchSize*10), // Buffer for 10 batches
		config:  config,
	}
}

// Enqueue adds an entry to the queue.
func (q *MemoryQueue) Enqueue(ctx context.Context, entry *models.AuditEntry) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.entries <- entry:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue retrieves entries from the queue.
func (q *MemoryQueue) Dequeue(ctx context.Context, maxItems int) ([]*models.AuditEntry, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	var entries []*models.AuditEntry

	// Block until we get at least one entry
	select {
	case entry := <-q.entries:
		entries = append(entries, entry)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Try to get more entries without blocking
	for len(entries) < maxItems {
		select {
		case entry := <-q.entries:
			entries = append(entries, entry)
		default:
			return entries, nil
		}
	}

	return entries, nil
}

// DequeueWithTimeout retrieves entries with a timeout.
func (q *MemoryQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]*models.AuditEntry, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	var entries []*models.AuditEntry
	deadline := time.After(timeout)

	// Try to get first entry with timeout
	select {
	case entry := <-q.entries:
		entries = append(entries, entry)
	case <-deadline:
		return entries, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Try to get more entries without blocking
	for len(entries) < maxItems {
		select {
		case entry := <-q.entries:
			entries = append(entries, entry)
		default:
			return entries, nil
		}
	}

	return entries, nil
}

// Length returns the current queue length.
func (q *MemoryQueue) Length(ctx context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return 0, ErrQueueClosed
	}

	return len(q.entries), nil
}

// Close shuts down the queue.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.entries)
	return nil
}

// MemoryDeadLetterQueue implements DeadLetterQueue using in-memory storage.
type MemoryDeadLetterQueue struct {
	items  []DeadLetterItem
	mu     sync.RWMutex
	closed bool
}

// NewMemoryDeadLetterQueue creates a new in-memory dead letter queue.
func NewMemoryDeadLetterQueue() *MemoryDeadLetterQueue {
	return &MemoryDeadLetterQueue{
		items: make([]DeadLetterItem, 0),
	}
}

// Add adds a failed entry to the dead letter queue.
func (q *MemoryDeadLetterQueue) Add(ctx context.Context, entry *models.AuditEntry, err error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	dlItem := DeadLetterItem{
		ID:        generateID(),
		Entry:     entry,
		Error:     err.Error(),
		Timestamp: time.Now(),
		Retries:   0,
	}

	q.items = append(q.items, dlItem)
	return nil
}

// List retrieves items from the dead letter queue.
func (q *MemoryDeadLetterQueue) List(ctx context.Context, maxItems int) ([]DeadLetterItem, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	if maxItems <= 0 || maxItems > len(q.items) {
		maxItems = len(q.items)
	}

	result := make([]DeadLetterItem, maxItems)
	copy(result, q.items[:maxItems])
	return result, nil
}

// Remove removes an item from the dead letter queue.
func (q *MemoryDeadLetterQueue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}

	return ErrItemNotFound
}

// Close shuts down the dead letter queue.
func (q *MemoryDeadLetterQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.items = nil
	return nil
}

// generateID generates a unique ID for dead letter items.
func generateID() string {
	return time.Now().Format("20060102150405.000000")
}

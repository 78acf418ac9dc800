package export

import (
	"context"
	"fmt"
	"time"

	"trust_gateway/internal/models"
	"trust_gateway/internal/queue"
	"trust_gateway/internal/utils"
)

// Worker drains audit entries off the queue in batches and hands them to a
// BatchWriter. Batches that keep failing go to the dead letter queue entry
// by entry, so one poison entry cannot block the rest.
type Worker struct {
	queue       queue.Queue
	dlq         queue.DeadLetterQueue
	writer      BatchWriter
	config      *queue.Config
	logger      *utils.Logger
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewWorker creates an export worker.
func NewWorker(q queue.Queue, dlq queue.DeadLetterQueue, writer BatchWriter, config *queue.Config) *Worker {
	if config == nil {
		config = queue.DefaultConfig("audit-export")
	}

	return &Worker{
		queue:       q,
		dlq:         dlq,
		writer:      writer,
		config:      config,
		logger:      utils.NewLogger("export-worker"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine.
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// Enqueue adds an audit entry to the export queue.
func (w *Worker) Enqueue(ctx context.Context, entry *models.AuditEntry) error {
	return w.queue.Enqueue(ctx, entry)
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Export worker stopping")
			return
		case <-ctx.Done():
			w.logger.Info("Export worker context cancelled")
			return
		default:
			w.processBatch(ctx)
		}
	}
}

// processBatch exports one batch with retries and exponential backoff.
func (w *Worker) processBatch(ctx context.Context) {
	entries, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		w.logger.Error("Failed to dequeue audit entries", "error", err)
		time.Sleep(1 * time.Second) // Back off on error
		return
	}

	if len(entries) == 0 {
		return
	}

	w.logger.Debug("Exporting audit batch", "count", len(entries))

	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			w.logger.Debug("Retrying audit export", "attempt", attempt, "backoff", backoff)
			time.Sleep(backoff)
		}

		dest, err := w.writer.WriteBatch(ctx, entries)
		if err != nil {
			lastErr = err
			w.logger.Error("Failed to export audit batch", "attempt", attempt, "error", err)
			continue
		}

		w.logger.Debug("Audit batch exported", "destination", dest, "count", len(entries))
		return
	}

	// Max retries exceeded - move entries to the dead letter queue.
	for _, entry := range entries {
		if err := w.dlq.Add(ctx, entry, lastErr); err != nil {
			w.logger.Error("Failed to add to dead letter queue", "auditId", entry.AuditID, "error", err)
		} else {
			w.logger.Warn("Audit entry moved to DLQ", "auditId", entry.AuditID, "error", lastErr)
		}
	}
}

// QueueLength returns the current export queue length.
func (w *Worker) QueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// DeadLetterItems returns items from the dead letter queue.
func (w *Worker) DeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error) {
	return w.dlq.List(ctx, maxItems)
}

// RetryDeadLetterItem re-enqueues a failed entry and removes it from the DLQ.
func (w *Worker) RetryDeadLetterItem(ctx context.Context, id string) error {
	items, err := w.dlq.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letter items: %w", err)
	}

	for _, dlItem := range items {
		if dlItem.ID == id {
			if err := w.queue.Enqueue(ctx, dlItem.Entry); err != nil {
				return fmt.Errorf("failed to re-enqueue entry: %w", err)
			}
			if err := w.dlq.Remove(ctx, id); err != nil {
				return fmt.Errorf("failed to remove from DLQ: %w", err)
			}
			return nil
		}
	}

	return fmt.Errorf("item not found in dead letter queue")
}

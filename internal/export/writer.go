package export

import (
	"context"

	"trust_gateway/internal/models"
)

// Package export drains audit entries off the queue and archives them as
// JSON Lines, either to S3 or to local rotating files. The Postgres ledger
// stays the authoritative store; exports feed offline analytics and
// compliance archival.

// BatchWriter persists one batch of audit entries and returns a destination
// identifier (S3 key or file path) for logging.
type BatchWriter interface {
	WriteBatch(ctx context.Context, entries []*models.AuditEntry) (string, error)
}

// NoopWriter discards batches. Used when no export destination is configured.
type NoopWriter struct{}

func NewNoopWriter() *NoopWriter {
	return &NoopWriter{}
}

func (w *NoopWriter) WriteBatch(ctx context.Context, entries []*models.AuditEntry) (string, error) {
	return "", nil
}

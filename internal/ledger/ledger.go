package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"trust_gateway/internal/models"
)

// Package ledger provides the append-only audit store. The hard requirement
// here is the concurrency/idempotency contract, not the storage mechanism:
// Record must store at most one entry per audit id, treat an identical retry
// as a no-op, and reject a divergent retry, all race-free under concurrent
// calls for the same id.

var (
	// ErrConflictingAuditEntry is returned when Record is called with an
	// audit id that already has a stored entry with a different payload.
	// Non-fatal to the caller's request; reported to the operational channel.
	ErrConflictingAuditEntry = errors.New("conflicting audit entry")

	// ErrAuditEntryNotFound is returned by Get for an unknown audit id.
	ErrAuditEntryNotFound = errors.New("audit entry not found")
)

// Ledger is the durable, append-only audit record store.
type Ledger interface {
	// Record stores the entry. Idempotent on AuditID: an identical re-record
	// is a no-op, a differing one fails with ErrConflictingAuditEntry and
	// leaves the first entry untouched.
	Record(ctx context.Context, entry *models.AuditEntry) error

	// Get returns the stored entry for the audit id, or ErrAuditEntryNotFound.
	Get(ctx context.Context, auditID uuid.UUID) (*models.AuditEntry, error)
}

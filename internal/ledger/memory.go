package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"trust_gateway/internal/models"
)

// MemoryLedger implements Ledger with an in-process map. No persistence, no
// external dependencies; used for standalone deployments and tests. The mutex
// makes the check-then-store in Record atomic, which serializes concurrent
// records for the same audit id.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*models.AuditEntry
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[uuid.UUID]*models.AuditEntry),
	}
}

// Record stores a copy of the entry, enforcing the idempotency contract.
func (l *MemoryLedger) Record(ctx context.Context, entry *models.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.entries[entry.AuditID]; ok {
		if existing.SamePayload(entry) {
			return nil
		}
		return ErrConflictingAuditEntry
	}

	stored := *entry
	l.entries[entry.AuditID] = &stored
	return nil
}

// Get returns a copy of the stored entry.
func (l *MemoryLedger) Get(ctx context.Context, auditID uuid.UUID) (*models.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.entries[auditID]
	if !ok {
		return nil, ErrAuditEntryNotFound
	}

	out := *entry
	return &out, nil
}

// Len returns the number of stored entries.
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

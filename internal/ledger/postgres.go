package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"trust_gateway/internal/models"
)

// PostgresLedger implements Ledger on top of PostgreSQL. The idempotency
// contract rides on the UNIQUE constraint on audit_id: the insert uses
// ON CONFLICT DO NOTHING, and a zero-row result means another writer got
// there first, in which case the stored payload is compared against ours.
// The database serializes the conflicting inserts, so the check is race-free
// without any application-level locking.
//
// Expected schema:
//
//	CREATE TABLE audit_entries (
//	    audit_id          UUID PRIMARY KEY,
//	    user_id           UUID,
//	    session_id        TEXT NOT NULL,
//	    message_id        TEXT NOT NULL,
//	    level             TEXT NOT NULL,
//	    pii_detected      BOOLEAN NOT NULL,
//	    pii_categories    TEXT[],
//	    document_attached BOOLEAN NOT NULL,
//	    is_local          BOOLEAN NOT NULL,
//	    model_id          TEXT NOT NULL,
//	    model_provider    TEXT NOT NULL,
//	    reason            TEXT NOT NULL,
//	    input_tokens      INTEGER NOT NULL,
//	    output_tokens     INTEGER NOT NULL,
//	    actual_cost_usd   DOUBLE PRECISION NOT NULL,
//	    cloud_cost_usd    DOUBLE PRECISION NOT NULL,
//	    cost_saved_usd    DOUBLE PRECISION NOT NULL,
//	    latency_ms        BIGINT NOT NULL,
//	    routing_time_ms   BIGINT NOT NULL,
//	    dispatch_error    TEXT NOT NULL DEFAULT '',
//	    metadata          JSONB,
//	    created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresLedger struct {
	conn *sqlx.DB
}

// PostgresConfig holds connection settings for the audit store.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// NewPostgresLedger connects to the database and configures the pool.
func NewPostgresLedger(cfg PostgresConfig) (*PostgresLedger, error) {
	conn, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to audit store: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return &PostgresLedger{conn: conn}, nil
}

// Close closes the underlying connection pool.
func (l *PostgresLedger) Close() error {
	return l.conn.Close()
}

// Ping checks if the audit store is reachable.
func (l *PostgresLedger) Ping(ctx context.Context) error {
	return l.conn.PingContext(ctx)
}

const insertEntry = `
	INSERT INTO audit_entries (
		audit_id, user_id, session_id, message_id,
		level, pii_detected, pii_categories, document_attached,
		is_local, model_id, model_provider, reason,
		input_tokens, output_tokens, actual_cost_usd, cloud_cost_usd, cost_saved_usd,
		latency_ms, routing_time_ms, dispatch_error, metadata, created_at
	) VALUES (
		:audit_id, :user_id, :session_id, :message_id,
		:level, :pii_detected, :pii_categories, :document_attached,
		:is_local, :model_id, :model_provider, :reason,
		:input_tokens, :output_tokens, :actual_cost_usd, :cloud_cost_usd, :cost_saved_usd,
		:latency_ms, :routing_time_ms, :dispatch_error, :metadata, :created_at
	)
	ON CONFLICT (audit_id) DO NOTHING
`

// Record inserts the entry, enforcing at-most-one row per audit id.
func (l *PostgresLedger) Record(ctx context.Context, entry *models.AuditEntry) error {
	result, err := l.conn.NamedExecContext(ctx, insertEntry, entry)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Another writer already stored this id. Identical payload is an
	// idempotent retry; anything else is a conflict.
	existing, err := l.Get(ctx, entry.AuditID)
	if err != nil {
		return fmt.Errorf("failed to verify existing audit entry: %w", err)
	}
	if existing.SamePayload(entry) {
		return nil
	}
	return ErrConflictingAuditEntry
}

const selectEntry = `
	SELECT audit_id, user_id, session_id, message_id,
	       level, pii_detected, pii_categories, document_attached,
	       is_local, model_id, model_provider, reason,
	       input_tokens, output_tokens, actual_cost_usd, cloud_cost_usd, cost_saved_usd,
	       latency_ms, routing_time_ms, dispatch_error, metadata, created_at
	FROM audit_entries
	WHERE audit_id = $1
`

// Get retrieves one entry by audit id.
func (l *PostgresLedger) Get(ctx context.Context, auditID uuid.UUID) (*models.AuditEntry, error) {
	var entry models.AuditEntry
	err := l.conn.GetContext(ctx, &entry, selectEntry, auditID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAuditEntryNotFound
		}
		return nil, fmt.Errorf("failed to get audit entry: %w", err)
	}
	return &entry, nil
}

const selectSince = `
	SELECT audit_id, user_id, session_id, message_id,
	       level, pii_detected, pii_categories, document_attached,
	       is_local, model_id, model_provider, reason,
	       input_tokens, output_tokens, actual_cost_usd, cloud_cost_usd, cost_saved_usd,
	       latency_ms, routing_time_ms, dispatch_error, metadata, created_at
	FROM audit_entries
	WHERE created_at >= $1
	ORDER BY created_at
	LIMIT $2
`

// ListSince returns entries created at or after the given time, oldest first.
// Used by the analytics aggregation consumer.
func (l *PostgresLedger) ListSince(ctx context.Context, since time.Time, limit int) ([]*models.AuditEntry, error) {
	var entries []*models.AuditEntry
	if err := l.conn.SelectContext(ctx, &entries, selectSince, since, limit); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

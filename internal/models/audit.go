package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

//
// AuditEntry (audit_entries table)
//

// AuditEntry is the durable, append-only record of one routing + cost
// decision, uniquely keyed by AuditID. Entries are written exactly once at the
// end of request processing and never mutated afterwards; the analytics
// aggregation pipeline reads them in bulk.
type AuditEntry struct {
	AuditID   uuid.UUID  `db:"audit_id" json:"audit_id"`
	UserID    *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	SessionID string     `db:"session_id" json:"session_id"`
	MessageID string     `db:"message_id" json:"message_id"`

	// Classifier output
	Level            SensitivityLevel `db:"level" json:"level"`
	PIIDetected      bool             `db:"pii_detected" json:"pii_detected"`
	PIICategories    pq.StringArray   `db:"pii_categories" json:"pii_categories,omitempty"`
	DocumentAttached bool             `db:"document_attached" json:"document_attached"`

	// Routing decision
	IsLocal       bool        `db:"is_local" json:"is_local"`
	ModelID       string      `db:"model_id" json:"model_id"`
	ModelProvider string      `db:"model_provider" json:"model_provider"`
	Reason        RouteReason `db:"reason" json:"reason"`

	// Cost figures
	InputTokens   int     `db:"input_tokens" json:"input_tokens"`
	OutputTokens  int     `db:"output_tokens" json:"output_tokens"`
	ActualCostUSD float64 `db:"actual_cost_usd" json:"actual_cost_usd"`
	CloudCostUSD  float64 `db:"cloud_cost_usd" json:"cloud_cost_usd"`
	CostSavedUSD  float64 `db:"cost_saved_usd" json:"cost_saved_usd"`

	// Timing and errors
	LatencyMs     int64  `db:"latency_ms" json:"latency_ms"`
	RoutingTimeMs int64  `db:"routing_time_ms" json:"routing_time_ms"`
	DispatchError string `db:"dispatch_error" json:"dispatch_error,omitempty"`

	Metadata JSONB `db:"metadata" json:"metadata,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewAuditEntry assembles an entry from the per-request artifacts.
func NewAuditEntry(
	auditID uuid.UUID,
	userID *uuid.UUID,
	sessionID, messageID string,
	assessment SensitivityAssessment,
	decision RoutingDecision,
	cost CostRecord,
) *AuditEntry {
	return &AuditEntry{
		AuditID:          auditID,
		UserID:           userID,
		SessionID:        sessionID,
		MessageID:        messageID,
		Level:            assessment.Level,
		PIIDetected:      assessment.PIIDetected,
		PIICategories:    pq.StringArray(assessment.PIICategories),
		DocumentAttached: assessment.DocumentAttached,
		IsLocal:          decision.IsLocal,
		ModelID:          decision.ModelID,
		ModelProvider:    decision.ModelProvider,
		Reason:           decision.Reason,
		InputTokens:      cost.InputTokens,
		OutputTokens:     cost.OutputTokens,
		ActualCostUSD:    cost.ActualCostUSD,
		CloudCostUSD:     cost.CloudCostUSD,
		CostSavedUSD:     cost.CostSavedUSD,
		LatencyMs:        cost.LatencyMs,
		RoutingTimeMs:    cost.RoutingTimeMs,
		CreatedAt:        time.Now().UTC(),
	}
}

// Assessment reconstructs the classifier output embedded in the entry.
func (e *AuditEntry) Assessment() SensitivityAssessment {
	return SensitivityAssessment{
		Level:            e.Level,
		PIIDetected:      e.PIIDetected,
		PIICategories:    []string(e.PIICategories),
		DocumentAttached: e.DocumentAttached,
	}
}

// Decision reconstructs the routing decision embedded in the entry.
func (e *AuditEntry) Decision() RoutingDecision {
	return RoutingDecision{
		IsLocal:       e.IsLocal,
		ModelID:       e.ModelID,
		ModelProvider: e.ModelProvider,
		Reason:        e.Reason,
	}
}

// Cost reconstructs the cost record embedded in the entry.
func (e *AuditEntry) Cost() CostRecord {
	return CostRecord{
		InputTokens:   e.InputTokens,
		OutputTokens:  e.OutputTokens,
		ActualCostUSD: e.ActualCostUSD,
		CloudCostUSD:  e.CloudCostUSD,
		CostSavedUSD:  e.CostSavedUSD,
		LatencyMs:     e.LatencyMs,
		RoutingTimeMs: e.RoutingTimeMs,
	}
}

// SamePayload reports whether two entries describe the same logical event.
// CreatedAt is excluded: a client retry carries a later wall-clock timestamp
// but is still the same event. Used by the ledger's idempotency check.
func (e *AuditEntry) SamePayload(other *AuditEntry) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.AuditID != other.AuditID ||
		e.SessionID != other.SessionID ||
		e.MessageID != other.MessageID ||
		e.Level != other.Level ||
		e.PIIDetected != other.PIIDetected ||
		e.DocumentAttached != other.DocumentAttached ||
		e.IsLocal != other.IsLocal ||
		e.ModelID != other.ModelID ||
		e.ModelProvider != other.ModelProvider ||
		e.Reason != other.Reason ||
		e.InputTokens != other.InputTokens ||
		e.OutputTokens != other.OutputTokens ||
		e.ActualCostUSD != other.ActualCostUSD ||
		e.CloudCostUSD != other.CloudCostUSD ||
		e.CostSavedUSD != other.CostSavedUSD ||
		e.LatencyMs != other.LatencyMs ||
		e.RoutingTimeMs != other.RoutingTimeMs ||
		e.DispatchError != other.DispatchError {
		return false
	}
	if (e.UserID == nil) != (other.UserID == nil) {
		return false
	}
	if e.UserID != nil && *e.UserID != *other.UserID {
		return false
	}
	if len(e.PIICategories) != len(other.PIICategories) {
		return false
	}
	for i := range e.PIICategories {
		if e.PIICategories[i] != other.PIICategories[i] {
			return false
		}
	}
	return true
}

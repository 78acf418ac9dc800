package models

import "github.com/google/uuid"

// TrustReport is the caller-facing explanation of a routing decision. It is
// computed on demand from immutable inputs and never persisted; AuditID is a
// back-reference for lookup, not ownership.
type TrustReport struct {
	Badge   string    `json:"badge"`
	Message string    `json:"message"`
	Details []string  `json:"details"`
	AuditID uuid.UUID `json:"audit_id"`
}

package trust

import (
	"fmt"

	"github.com/google/uuid"

	"trust_gateway/internal/models"
)

// Package trust builds the caller-facing explanation of a routing decision.
// Build is a pure projection over immutable inputs: no I/O, no policy of its
// own beyond rendering what the routing policy already decided.

// Badge labels shown by the presentation layer.
const (
	BadgeSecureLocal = "SECURE LOCAL"
	BadgeLocal       = "LOCAL"
	BadgeCloud       = "CLOUD"
)

// Build composes a trust report from the decision, cost figures and
// assessment of one request. The badge and message come from a fixed mapping
// keyed by (isLocal, piiDetected, documentAttached); details are assembled by
// conditional composition in a fixed order.
func Build(
	decision models.RoutingDecision,
	cost models.CostRecord,
	assessment models.SensitivityAssessment,
	auditID uuid.UUID,
) models.TrustReport {
	badge, message := badgeAndMessage(decision.IsLocal, assessment.PIIDetected, assessment.DocumentAttached)

	var details []string
	if decision.IsLocal {
		if assessment.DocumentAttached {
			details = append(details, "Document processed on local model")
		}
		if assessment.PIIDetected {
			details = append(details, fmt.Sprintf("Personal information protected: %d categories detected", len(assessment.PIICategories)))
		}
		details = append(details, "No data sent to third-party provider")
		details = append(details, fmt.Sprintf("Model: %s", decision.ModelID))
		if cost.CostSavedUSD > 0 {
			details = append(details, fmt.Sprintf("Estimated savings vs cloud: $%.6f", cost.CostSavedUSD))
		}
	} else {
		details = append(details, "No documents or personal information detected")
		details = append(details, fmt.Sprintf("Model: %s (%s)", decision.ModelID, decision.ModelProvider))
		details = append(details, "You can force local processing anytime")
	}

	return models.TrustReport{
		Badge:   badge,
		Message: message,
		Details: details,
		AuditID: auditID,
	}
}

// badgeAndMessage is the fixed (isLocal, piiDetected, documentAttached)
// mapping. Cloud routing with PII or a document attached cannot occur under
// the routing policy; the mapping still renders it honestly rather than
// masking a policy bug.
func badgeAndMessage(isLocal, piiDetected, documentAttached bool) (string, string) {
	switch {
	case isLocal && (piiDetected || documentAttached):
		return BadgeSecureLocal, "Your data is being processed securely on-premise. No information leaves your server."
	case isLocal:
		return BadgeLocal, "Processing locally for privacy and cost savings."
	case piiDetected || documentAttached:
		return BadgeCloud, "Sensitive content was processed on a cloud model. Review routing configuration."
	default:
		return BadgeCloud, "No sensitive content detected. Using cloud for faster response."
	}
}

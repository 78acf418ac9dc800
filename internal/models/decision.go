package models

//
// Routing decision
//

// RouteReason enumerates why a request was routed the way it was.
type RouteReason string

const (
	ReasonForcedLocal       RouteReason = "forced-local"
	ReasonSensitivityPolicy RouteReason = "sensitivity-policy"
	ReasonPreferredModel    RouteReason = "preferred-model"
	ReasonFallback          RouteReason = "fallback"
)

// RoutingDecision is derived from one SensitivityAssessment plus the caller's
// RoutingConstraint. When policy mandates local processing, IsLocal is true
// regardless of any preferred model.
type RoutingDecision struct {
	IsLocal       bool        `json:"is_local"`
	ModelID       string      `json:"model_id"`
	ModelProvider string      `json:"model_provider"`
	Reason        RouteReason `json:"reason"`
}

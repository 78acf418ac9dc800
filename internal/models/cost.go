package models

//
// Cost accounting
//

// CostRecord captures the billing outcome of one completed request.
// CloudCostUSD is the counterfactual: what the same tokens would have cost on
// the cheapest configured cloud model. For local routing ActualCostUSD is
// always zero, so CostSavedUSD equals CloudCostUSD.
type CostRecord struct {
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	ActualCostUSD float64 `json:"actual_cost_usd"`
	CloudCostUSD  float64 `json:"cloud_cost_usd"`
	CostSavedUSD  float64 `json:"cost_saved_usd"`
	LatencyMs     int64   `json:"latency_ms"`
	RoutingTimeMs int64   `json:"routing_time_ms"`
}

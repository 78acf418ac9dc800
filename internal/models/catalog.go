package models

//
// Model catalog (configuration snapshot)
//

// ModelDescriptor describes one dispatch target. The catalog is loaded once at
// startup and passed explicitly to routing and cost estimation so decisions
// are reproducible against a fixed snapshot.
type ModelDescriptor struct {
	ID                       string  `json:"id"`
	Provider                 string  `json:"provider"`
	IsLocal                  bool    `json:"is_local"`
	CostPerThousandTokensUSD float64 `json:"cost_per_1k_tokens_usd"`
}

// RoutingConstraint carries the caller's explicit routing preferences.
// ForceLocal is the strictest intent and always wins.
type RoutingConstraint struct {
	ForceLocal     bool   `json:"force_local"`
	PreferredModel string `json:"preferred_model,omitempty"`
}

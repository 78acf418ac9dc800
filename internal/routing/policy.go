package routing

import (
	"errors"
	"sort"

	"trust_gateway/internal/models"
)

var (
	// ErrNoModelAvailable is returned when the catalog snapshot is empty.
	// This is a configuration error: routing cannot proceed without a
	// dispatch target, and retrying will fail identically.
	ErrNoModelAvailable = errors.New("no model available")

	// ErrNoLocalModel is returned when policy mandates local processing but
	// the catalog contains no local model.
	ErrNoLocalModel = errors.New("no local model configured")
)

// Decide selects a target model for one request.
//
// Priority order:
//  1. constraint.ForceLocal or level confidential/restricted: best local
//     model, reason forced-local or sensitivity-policy (forced-local wins
//     when both apply, since it is the stricter caller intent).
//  2. A preferred model that is present in the catalog.
//  3. Lowest-cost model overall.
//
// Step 1 firing before step 2 guarantees a request is never sent to a cloud
// model against policy: an unsafe preferred-model choice is overridden, a safe
// one is honored. Ties on cost break by lexicographic model id, so identical
// inputs always produce identical decisions.
func Decide(
	assessment models.SensitivityAssessment,
	constraint models.RoutingConstraint,
	availableModels []models.ModelDescriptor,
) (models.RoutingDecision, error) {
	if len(availableModels) == 0 {
		return models.RoutingDecision{}, ErrNoModelAvailable
	}

	mandatesLocal := assessment.Level.AtLeast(models.LevelConfidential)

	if constraint.ForceLocal || mandatesLocal {
		local := filterLocal(availableModels)
		if len(local) == 0 {
			return models.RoutingDecision{}, ErrNoLocalModel
		}
		reason := models.ReasonSensitivityPolicy
		if constraint.ForceLocal {
			reason = models.ReasonForcedLocal
		}
		return decisionFor(cheapest(local), reason), nil
	}

	if constraint.PreferredModel != "" {
		if m, ok := lookup(availableModels, constraint.PreferredModel); ok {
			return decisionFor(m, models.ReasonPreferredModel), nil
		}
	}

	return decisionFor(cheapest(availableModels), models.ReasonFallback), nil
}

// ValidateCatalog checks the startup invariants of a model catalog: it must
// be non-empty and contain at least one local model. Callers treat a failure
// as fatal, not per-request.
func ValidateCatalog(availableModels []models.ModelDescriptor) error {
	if len(availableModels) == 0 {
		return ErrNoModelAvailable
	}
	if len(filterLocal(availableModels)) == 0 {
		return ErrNoLocalModel
	}
	return nil
}

func decisionFor(m models.ModelDescriptor, reason models.RouteReason) models.RoutingDecision {
	return models.RoutingDecision{
		IsLocal:       m.IsLocal,
		ModelID:       m.ID,
		ModelProvider: m.Provider,
		Reason:        reason,
	}
}

func filterLocal(ms []models.ModelDescriptor) []models.ModelDescriptor {
	var local []models.ModelDescriptor
	for _, m := range ms {
		if m.IsLocal {
			local = append(local, m)
		}
	}
	return local
}

func lookup(ms []models.ModelDescriptor, id string) (models.ModelDescriptor, bool) {
	for _, m := range ms {
		if m.ID == id {
			return m, true
		}
	}
	return models.ModelDescriptor{}, false
}

// cheapest returns the lowest-cost model, breaking ties by id.
func cheapest(ms []models.ModelDescriptor) models.ModelDescriptor {
	sorted := make([]models.ModelDescriptor, len(ms))
	copy(sorted, ms)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CostPerThousandTokensUSD != sorted[j].CostPerThousandTokensUSD {
			return sorted[i].CostPerThousandTokensUSD < sorted[j].CostPerThousandTokensUSD
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted[0]
}

package costs

import (
	"errors"
	"fmt"

	"trust_gateway/internal/models"
)

// ErrUnknownModel is returned when a decision references a model that is not
// in the catalog snapshot. This indicates a programming error upstream, not a
// runtime condition: the decision was produced from the same snapshot.
var ErrUnknownModel = errors.New("unknown model")

// DefaultReferenceCloudRateUSD is the per-1K-token rate used for the
// counterfactual cloud cost when no cloud model is configured. Matches the
// GPT-4o rate so local-only deployments still report meaningful savings.
const DefaultReferenceCloudRateUSD = 0.005

// Estimator computes actual and counterfactual request costs. All currency
// arithmetic stays in full float64 precision; rounding is the presentation
// layer's job.
type Estimator struct {
	// ReferenceCloudRateUSD is the fallback per-1K-token cloud rate applied
	// when the catalog has no cloud model.
	ReferenceCloudRateUSD float64
}

// NewEstimator returns an estimator with the given reference cloud rate, or
// the default when rate is zero or negative.
func NewEstimator(rate float64) *Estimator {
	if rate <= 0 {
		rate = DefaultReferenceCloudRateUSD
	}
	return &Estimator{ReferenceCloudRateUSD: rate}
}

// Estimate produces the cost record for one completed request. Latency and
// routing-time fields are left zero for the caller to populate after
// measuring elapsed wall time.
func (e *Estimator) Estimate(
	decision models.RoutingDecision,
	inputTokens, outputTokens int,
	availableModels []models.ModelDescriptor,
) (models.CostRecord, error) {
	if inputTokens < 0 || outputTokens < 0 {
		return models.CostRecord{}, fmt.Errorf("negative token count: input=%d output=%d", inputTokens, outputTokens)
	}

	totalTokens := float64(inputTokens + outputTokens)

	actual := 0.0
	if !decision.IsLocal {
		chosen, ok := lookup(availableModels, decision.ModelID)
		if !ok {
			return models.CostRecord{}, fmt.Errorf("%w: %s", ErrUnknownModel, decision.ModelID)
		}
		actual = totalTokens / 1000 * chosen.CostPerThousandTokensUSD
	}

	cloudRate := e.ReferenceCloudRateUSD
	if rate, ok := cheapestCloudRate(availableModels); ok {
		cloudRate = rate
	}
	cloud := totalTokens / 1000 * cloudRate

	saved := cloud - actual
	if saved < 0 {
		saved = 0
	}

	return models.CostRecord{
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		ActualCostUSD: actual,
		CloudCostUSD:  cloud,
		CostSavedUSD:  saved,
	}, nil
}

func lookup(ms []models.ModelDescriptor, id string) (models.ModelDescriptor, bool) {
	for _, m := range ms {
		if m.ID == id {
			return m, true
		}
	}
	return models.ModelDescriptor{}, false
}

// cheapestCloudRate returns the lowest per-1K rate among cloud models, used
// as the counterfactual baseline regardless of where the request actually ran.
func cheapestCloudRate(ms []models.ModelDescriptor) (float64, bool) {
	best := 0.0
	found := false
	for _, m := range ms {
		if m.IsLocal {
			continue
		}
		if !found || m.CostPerThousandTokensUSD < best {
			best = m.CostPerThousandTokensUSD
			found = true
		}
	}
	return best, found
}

package costs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trust_gateway/internal/models"
)

var testCatalog = []models.ModelDescriptor{
	{ID: "local-1", Provider: "ollama", IsLocal: true, CostPerThousandTokensUSD: 0},
	{ID: "gpt-4", Provider: "openai", IsLocal: false, CostPerThousandTokensUSD: 0.03},
	{ID: "gpt-4o-mini", Provider: "openai", IsLocal: false, CostPerThousandTokensUSD: 0.00015},
}

func localDecision() models.RoutingDecision {
	return models.RoutingDecision{IsLocal: true, ModelID: "local-1", ModelProvider: "ollama", Reason: models.ReasonSensitivityPolicy}
}

func cloudDecision(id string) models.RoutingDecision {
	return models.RoutingDecision{IsLocal: false, ModelID: id, ModelProvider: "openai", Reason: models.ReasonFallback}
}

func TestEstimate_LocalCostIsZero(t *testing.T) {
	e := NewEstimator(0)

	rec, err := e.Estimate(localDecision(), 1000, 500, testCatalog)
	require.NoError(t, err)

	assert.Zero(t, rec.ActualCostUSD)
	// Counterfactual uses the cheapest cloud model: 1500 tokens at 0.00015/1K.
	assert.InDelta(t, 0.000225, rec.CloudCostUSD, 1e-12)
	assert.Equal(t, rec.CloudCostUSD, rec.CostSavedUSD)
}

func TestEstimate_CloudCost(t *testing.T) {
	e := NewEstimator(0)

	rec, err := e.Estimate(cloudDecision("gpt-4"), 1000, 1000, testCatalog)
	require.NoError(t, err)

	// 2000 tokens at 0.03/1K.
	assert.InDelta(t, 0.06, rec.ActualCostUSD, 1e-12)
	// Counterfactual is still the cheapest cloud model, so savings clamp to 0.
	assert.InDelta(t, 0.0003, rec.CloudCostUSD, 1e-12)
	assert.Zero(t, rec.CostSavedUSD)
}

func TestEstimate_ReferenceRateWhenNoCloudModel(t *testing.T) {
	localOnly := []models.ModelDescriptor{
		{ID: "local-1", Provider: "ollama", IsLocal: true},
	}
	e := NewEstimator(0)

	rec, err := e.Estimate(localDecision(), 2000, 0, localOnly)
	require.NoError(t, err)

	// 2000 tokens at the default reference rate of 0.005/1K.
	assert.InDelta(t, 0.01, rec.CloudCostUSD, 1e-12)
	assert.Equal(t, rec.CloudCostUSD, rec.CostSavedUSD)
	assert.Positive(t, rec.CostSavedUSD)
}

func TestEstimate_UnknownModel(t *testing.T) {
	e := NewEstimator(0)

	_, err := e.Estimate(cloudDecision("no-such-model"), 10, 10, testCatalog)
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestEstimate_NonNegativity(t *testing.T) {
	e := NewEstimator(0)

	cases := []struct {
		decision models.RoutingDecision
		in, out  int
	}{
		{localDecision(), 0, 0},
		{localDecision(), 1, 0},
		{cloudDecision("gpt-4o-mini"), 0, 0},
		{cloudDecision("gpt-4"), 123456, 654321},
	}

	for _, tc := range cases {
		rec, err := e.Estimate(tc.decision, tc.in, tc.out, testCatalog)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, rec.ActualCostUSD, 0.0)
		assert.GreaterOrEqual(t, rec.CostSavedUSD, 0.0)
		assert.GreaterOrEqual(t, rec.CloudCostUSD, 0.0)
	}
}

func TestEstimate_RejectsNegativeTokens(t *testing.T) {
	e := NewEstimator(0)

	_, err := e.Estimate(localDecision(), -1, 0, testCatalog)
	assert.Error(t, err)
}

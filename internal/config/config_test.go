package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Empty(t, cfg.Database.URL)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "file", cfg.Export.Destination)
	assert.Equal(t, 5*time.Second, cfg.Export.BatchTimeout)

	// Default catalog satisfies the local-model requirement.
	require.Len(t, cfg.Catalog, 1)
	assert.True(t, cfg.Catalog[0].IsLocal)
}

func TestLoad_CatalogFromEnv(t *testing.T) {
	t.Setenv("MODEL_CATALOG", `[
		{"id": "llama3.1:8b", "provider": "ollama", "is_local": true, "cost_per_1k_tokens_usd": 0},
		{"id": "gpt-4o-mini", "provider": "openai", "is_local": false, "cost_per_1k_tokens_usd": 0.00015}
	]`)

	cfg, err := Load()
	require.NoError(t, err)

	require.Len(t, cfg.Catalog, 2)
	assert.Equal(t, "gpt-4o-mini", cfg.Catalog[1].ID)
	assert.Equal(t, 0.00015, cfg.Catalog[1].CostPerThousandTokensUSD)
}

func TestLoad_InvalidCatalog(t *testing.T) {
	t.Setenv("MODEL_CATALOG", "not json")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")
	t.Setenv("REFERENCE_CLOUD_RATE_USD", "0.01")
	t.Setenv("EXPORT_DESTINATION", "s3")
	t.Setenv("EXPORT_S3_BUCKET", "audit-archive")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 0.01, cfg.ReferenceCloudRateUSD)
	assert.Equal(t, "s3", cfg.Export.Destination)
	assert.Equal(t, "audit-archive", cfg.Export.S3Bucket)
}

func TestLoad_BadValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")
	t.Setenv("EXPORT_BATCH_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Second, cfg.Export.BatchTimeout)
}

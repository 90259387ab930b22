package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "SITE_URL", "ALLOWED_ORIGINS", "ADMIN_REFRESH_KEY",
		"AIRTABLE_API_KEY_WEB_RESOURCE", "AIRTABLE_BASE_ID_WEB_RESOURCE", "AIRTABLE_API_KEY", "AIRTABLE_BASE_ID",
		"BUCKET_ENDPOINT", "BUCKET_NAME", "MEDIA_PUBLIC_URL", "CATALOG_WARM_INTERVAL",
		"MIRROR_PRODUCT_BATCH_SIZE", "MIRROR_EVENT_BATCH_SIZE", "REDIS_HOST", "REDIS_PORT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8787, cfg.ServerPort)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "https://api.airtable.com/v0", cfg.CatalogRecords.BaseURL)
	assert.False(t, cfg.CatalogRecords.Configured())
	assert.False(t, cfg.OrderRecords.Configured())
	assert.False(t, cfg.Bucket.Configured())
	assert.Empty(t, cfg.AdminRefreshKey)
	assert.Equal(t, time.Duration(0), cfg.CatalogWarmInterval)
	assert.Equal(t, 10, cfg.ProductBatchSize)
	assert.Equal(t, 5, cfg.EventBatchSize)
	assert.Equal(t, "usd", cfg.Stripe.Currency)
	assert.Contains(t, cfg.AllowedOrigins, "http://localhost:8000")
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SITE_URL", "https://shop.example.com/")
	t.Setenv("ALLOWED_ORIGINS", "https://shop.example.com, https://www.shop.example.com ,")
	t.Setenv("AIRTABLE_API_KEY_WEB_RESOURCE", "patCatalog")
	t.Setenv("AIRTABLE_BASE_ID_WEB_RESOURCE", "appCatalog")
	t.Setenv("BUCKET_ENDPOINT", "r2.example.com")
	t.Setenv("BUCKET_NAME", "media")
	t.Setenv("MEDIA_PUBLIC_URL", "https://media.example.com/")
	t.Setenv("CATALOG_WARM_INTERVAL", "15m")
	t.Setenv("MIRROR_PRODUCT_BATCH_SIZE", "4")
	t.Setenv("MIRROR_EVENT_BATCH_SIZE", "-1")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.ServerPort)
	assert.Equal(t, "https://shop.example.com", cfg.SiteURL)
	assert.Equal(t, []string{"https://shop.example.com", "https://www.shop.example.com"}, cfg.AllowedOrigins)
	assert.True(t, cfg.CatalogRecords.Configured())
	assert.True(t, cfg.Bucket.Configured())
	assert.Equal(t, "https://media.example.com", cfg.Bucket.PublicBaseURL)
	assert.Equal(t, 15*time.Minute, cfg.CatalogWarmInterval)
	assert.Equal(t, 4, cfg.ProductBatchSize)
	assert.Equal(t, 5, cfg.EventBatchSize, "non-positive sizes fall back to the default")
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("PORT", "eighty")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("PORT", "")
	t.Setenv("CATALOG_WARM_INTERVAL", "soon")
	_, err = LoadConfig()
	assert.Error(t, err)
}

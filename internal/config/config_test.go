package config

import (
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-storefront-cache/internal/cacheinfra"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, cacheinfra.BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, "msgpack", cfg.Cache.Codec)
	assert.Equal(t, int64(100), cfg.Cache.ScanPageSize)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "UTC", cfg.Analytics.Timezone)
	assert.Equal(t, []string{"7d", "30d"}, cfg.Analytics.WarmPresets)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Revalidation.Enabled())
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"STOREFRONT_HTTP_ADDR":                ":9090",
		"STOREFRONT_CACHE_BACKEND":            "redis",
		"STOREFRONT_CACHE_REDIS_URL":          "redis://cache:6379/2",
		"STOREFRONT_CACHE_DEFAULT_TTL":        "90s",
		"STOREFRONT_DATABASE_DRIVER":          "postgres",
		"STOREFRONT_DATABASE_DSN":             "postgres://u:p@db/storefront?sslmode=disable",
		"STOREFRONT_ANALYTICS_TIMEZONE":       "America/New_York",
		"STOREFRONT_ANALYTICS_WARM_SCHEDULE":  "@every 15m",
		"STOREFRONT_ANALYTICS_WARM_STORES":    "s1,s2",
		"STOREFRONT_REVALIDATION_WEBHOOK_URL": "https://web.example.com/api/revalidate",
		"STOREFRONT_REVALIDATION_SECRET":      "shh",
		"STOREFRONT_LOG_FORMAT":               "text",
	})
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 90*time.Second, cfg.Cache.DefaultTTL)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, []string{"s1", "s2"}, cfg.Analytics.WarmStores)
	assert.Equal(t, "America/New_York", cfg.Analytics.Location().String())

	infra := cfg.Cache.ToInfra()
	assert.Equal(t, cacheinfra.BackendRedis, infra.Backend)
	assert.Equal(t, "redis://cache:6379/2", infra.Redis.URL)

	manager := cfg.Cache.ToManager()
	assert.Equal(t, 90*time.Second, manager.DefaultTTL)

	require.True(t, cfg.Revalidation.Enabled())
	webhook := cfg.Revalidation.Webhook()
	assert.Equal(t, "shh", webhook.Secret)
	assert.Equal(t, uint64(3), webhook.MaxRetries)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"unknown backend", map[string]string{"STOREFRONT_CACHE_BACKEND": "memcached"}},
		{"unknown codec", map[string]string{"STOREFRONT_CACHE_CODEC": "gob"}},
		{"ttl below a second", map[string]string{"STOREFRONT_CACHE_DEFAULT_TTL": "10ms"}},
		{"unknown driver", map[string]string{"STOREFRONT_DATABASE_DRIVER": "mysql"}},
		{"bad timezone", map[string]string{"STOREFRONT_ANALYTICS_TIMEZONE": "Mars/Olympus"}},
		{"schedule without stores", map[string]string{"STOREFRONT_ANALYTICS_WARM_SCHEDULE": "@hourly"}},
		{"bad log level", map[string]string{"STOREFRONT_LOG_LEVEL": "loud"}},
		{"unparsable duration", map[string]string{"STOREFRONT_HTTP_READ_TIMEOUT": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			require.Error(t, err)
			assert.True(t, goerrors.IsCategory(err, goerrors.CategoryValidation), "got %v", err)
		})
	}
}

func TestAnalyticsLocation_FallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, AnalyticsConfig{Timezone: "nowhere"}.Location())
}

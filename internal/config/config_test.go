package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8010, cfg.HTTPPort)
	assert.Equal(t, StoreDriverRedis, cfg.StoreDriver)
	assert.Equal(t, "storefront", cfg.StoreNamespace)
	assert.Equal(t, 24*time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, 15*time.Minute, cfg.ResetTokenTTL)
	assert.Equal(t, "/login", cfg.AuthFallbackPath)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Empty(t, cfg.ResetWebhookURL)
	assert.False(t, cfg.OTELEnabled)

	rl := cfg.AuthRateLimit()
	assert.Equal(t, 1.0, rl.RPS)
	assert.Equal(t, 5, rl.Burst)
	assert.False(t, rl.TrustProxyHeaders)
	assert.Equal(t, 3*time.Minute, rl.IdleTTL)
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"STOREFRONT_HTTP_PORT":  "9000",
		"STORE_DRIVER":          "postgres",
		"STORE_NAMESPACE":       "demo",
		"KAFKA_BROKERS":         "k1:9092,k2:9092",
		"SESSION_MAX_AGE":       "1h",
		"RESET_TOKEN_TTL":       "5m",
		"RESET_WEBHOOK_URL":     "http://mailer/reset",
		"STOREFRONT_DB_NAME":    "shop",
		"AUTH_RATE_LIMIT_RPS":   "0.5",
		"AUTH_RATE_LIMIT_BURST": "2",
		"TRUST_PROXY_HEADERS":   "true",
	})
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "demo", cfg.StoreNamespace)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, 5*time.Minute, cfg.ResetTokenTTL)
	assert.Equal(t, "http://mailer/reset", cfg.ResetWebhookURL)
	assert.Equal(t, "shop", cfg.Postgres().DBName)
	assert.Equal(t, 0.5, cfg.AuthRateLimit().RPS)
	assert.Equal(t, 2, cfg.AuthRateLimit().Burst)
	assert.True(t, cfg.AuthRateLimit().TrustProxyHeaders)
}

func TestLoad_FromProcessEnvironment(t *testing.T) {
	t.Setenv("STOREFRONT_HTTP_PORT", "8123")
	t.Setenv("REDIS_ADDR", "cache:6380")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8123, cfg.HTTPPort)
	assert.Equal(t, "cache:6380", cfg.Redis().Addr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"port too large", map[string]string{"STOREFRONT_HTTP_PORT": "70000"}, "invalid HTTP port"},
		{"unknown driver", map[string]string{"STORE_DRIVER": "localstorage"}, "invalid STORE_DRIVER"},
		{"zero session age", map[string]string{"SESSION_MAX_AGE": "0s"}, "SESSION_MAX_AGE"},
		{"negative token ttl", map[string]string{"RESET_TOKEN_TTL": "-1m"}, "RESET_TOKEN_TTL"},
		{"zero rate limit", map[string]string{"AUTH_RATE_LIMIT_RPS": "0"}, "AUTH_RATE_LIMIT_RPS"},
		{"zero burst", map[string]string{"AUTH_RATE_LIMIT_BURST": "0"}, "AUTH_RATE_LIMIT_BURST"},
		{"sample rate", map[string]string{"OTEL_SAMPLE_RATE": "1.5"}, "OTEL_SAMPLE_RATE"},
		{"bad duration", map[string]string{"SESSION_MAX_AGE": "forever"}, "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFrom(tt.env)
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BLING_AUTH_BASE_URL", "https://auth.example.com/token")
	t.Setenv("BLING_AUTH_SECRET", "bootstrap")
	t.Setenv("STORE_TYPE", "sqlite")
	t.Setenv("STORE_DSN", ":memory:")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://www.bling.com.br/Api/v3", cfg.Bling.APIBaseURL)
	assert.Equal(t, "lojaodositio", cfg.Bling.Tenant)
	assert.Equal(t, 4*time.Second, cfg.Bling.ThrottleInterval)
	assert.Equal(t, 5*time.Hour, cfg.Bling.TokenTTL)
	assert.Equal(t, "4951136", cfg.Bling.ReceivablePaymentMethodID)
	assert.Equal(t, 30*24*time.Hour, cfg.Bling.ReceivableWindow)
	assert.Equal(t, "receivables", cfg.Store.Collections.Receivables)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, 24*time.Hour, cfg.Sync.Interval)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("BLING_THROTTLE_INTERVAL", "0s")
	t.Setenv("TOKEN_CACHE_TYPE", "redis")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("MONGO_COLLECTION_RECEIVABLE", "contas_receber")
	t.Setenv("SYNC_TIMEZONE", "America/Sao_Paulo")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Zero(t, cfg.Bling.ThrottleInterval)
	assert.Equal(t, "cache:6380", cfg.Cache.RedisAddress())
	assert.Equal(t, "contas_receber", cfg.Store.Collections.Receivables)

	loc, err := cfg.Sync.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Sao_Paulo", loc.String())
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Bling: BlingConfig{AuthBaseURL: "https://auth", AuthSecret: "s", Tenant: "t"},
			Store: StoreConfig{Type: "mongodb", MongoURI: "mongodb://localhost", MongoDatabase: "bling"},
			Cache: CacheConfig{Type: "memory"},
			Sync:  SyncConfig{Interval: time.Hour},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing secret", func(c *Config) { c.Bling.AuthSecret = "" }, "BLING_AUTH_SECRET"},
		{"missing mongo uri", func(c *Config) { c.Store.MongoURI = "" }, "MONGO_URI"},
		{"unknown store", func(c *Config) { c.Store.Type = "cassandra" }, "STORE_TYPE"},
		{"unknown cache", func(c *Config) { c.Cache.Type = "memcached" }, "TOKEN_CACHE_TYPE"},
		{"negative throttle", func(c *Config) { c.Bling.ThrottleInterval = -time.Second }, "BLING_THROTTLE_INTERVAL"},
		{"zero interval", func(c *Config) { c.Sync.Interval = 0 }, "SYNC_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLocation_Local(t *testing.T) {
	loc, err := (&SyncConfig{Timezone: "Local"}).Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	_, err = (&SyncConfig{Timezone: "Mars/Olympus"}).Location()
	assert.Error(t, err)
}

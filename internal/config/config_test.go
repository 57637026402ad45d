package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, "P1000", cfg.DefaultPatientID)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
	assert.True(t, cfg.IsDev())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", " Redis ")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("DOCTOR_CHAT_ID", "42")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("HTTP_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, BackendRedis, cfg.StoreBackend)
	assert.Equal(t, int64(42), cfg.DoctorChatID)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.True(t, cfg.ReportsEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	base := Config{ExtractorURL: "http://x", HTTPTimeout: time.Second}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"memory ok", func(c *Config) { c.StoreBackend = BackendMemory }, ""},
		{"redis needs url", func(c *Config) { c.StoreBackend = BackendRedis }, "REDIS_URL"},
		{"postgres needs url", func(c *Config) { c.StoreBackend = BackendPostgres }, "DATABASE_URL"},
		{"sqlite needs path", func(c *Config) { c.StoreBackend = BackendSQLite }, "SQLITE_PATH"},
		{"unknown backend", func(c *Config) { c.StoreBackend = "etcd" }, "STORE_BACKEND"},
		{"extractor required", func(c *Config) { c.StoreBackend = BackendMemory; c.ExtractorURL = "" }, "EXTRACTOR_URL"},
		{"timeout positive", func(c *Config) { c.StoreBackend = BackendMemory; c.HTTPTimeout = 0 }, "HTTP_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

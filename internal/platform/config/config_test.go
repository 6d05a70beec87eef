package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/familyhub")
}

func TestLoad_RequiredVarSet(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/familyhub", cfg.DatabaseURL)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, "DATABASE_URL is required", err.Error())
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "familyhub:events", cfg.EventsTopic)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 2*time.Second, cfg.PublishTimeout)
	assert.Equal(t, 10000, cfg.MaxWebSocketConnections)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.False(t, cfg.BroadcastEnabled())
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("REDIS_URL", "redis://redis:6379/0")
	t.Setenv("EVENTS_TOPIC", "custom:events")
	t.Setenv("HEARTBEAT_INTERVAL", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "production", cfg.AppEnv)
	assert.True(t, cfg.BroadcastEnabled())
	assert.Equal(t, "custom:events", cfg.EventsTopic)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"bad redis scheme", "REDIS_URL", "http://redis:6379", `REDIS_URL must use redis:// or rediss://, got "http"`},
		{"empty topic", "EVENTS_TOPIC", "  ", "EVENTS_TOPIC must not be empty"},
		{"zero heartbeat", "HEARTBEAT_INTERVAL", "0s", "HEARTBEAT_INTERVAL must be positive"},
		{"zero publish timeout", "PUBLISH_TIMEOUT", "0s", "PUBLISH_TIMEOUT must be positive"},
		{"zero connections", "MAX_WEBSOCKET_CONNECTIONS", "0", "MAX_WEBSOCKET_CONNECTIONS must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	tests := []struct {
		name    string
		origins string
		want    []string
	}{
		{"empty", "", []string{"*"}},
		{"single", "https://hub.example.com", []string{"https://hub.example.com"}},
		{"list with spaces", "https://a.example.com, http://localhost:5173", []string{"https://a.example.com", "http://localhost:5173"}},
		{"trailing comma", "https://a.example.com,", []string{"https://a.example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Origins: tt.origins}
			assert.Equal(t, tt.want, cfg.AllowedOrigins())
		})
	}
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5001", cfg.Port)
	assert.Equal(t, "chat.events", cfg.AMQPExchange)
	assert.Equal(t, "audit.chat", cfg.AuditRoutingKey)
	assert.Equal(t, 64, cfg.WSSendBuffer)
	assert.Equal(t, 0, cfg.GroupFeedLimit)
	assert.False(t, cfg.DebugRoutes)
	assert.Equal(t, "memory", cfg.StoreMode())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "8080")
	t.Setenv("DB_DSN", "postgres://chat@localhost/chat")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("GROUP_FEED_LIMIT", "100")
	t.Setenv("DEBUG_ROUTES", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.StoreMode())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, 100, cfg.GroupFeedLimit)
	assert.True(t, cfg.DebugRoutes)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":   {"JWT_SECRET": ""},
		"zero buffer":      {"JWT_SECRET": "s", "WS_SEND_BUFFER": "0"},
		"negative limit":   {"JWT_SECRET": "s", "GROUP_FEED_LIMIT": "-1"},
		"malformed number": {"JWT_SECRET": "s", "WS_SEND_BUFFER": "lots"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

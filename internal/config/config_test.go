package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 7, cfg.BookingWindowDays)
	assert.Equal(t, 24*time.Hour, cfg.ConversationTTL)
	assert.Equal(t, 30*time.Second, cfg.EMRTimeout)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModelID)
	assert.Equal(t, float64(10), cfg.RateLimitPerSecond)
	assert.Equal(t, 30, cfg.RateLimitBurst)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BOOKING_WINDOW_DAYS", "14")
	t.Setenv("USE_MEMORY_STORE", "true")
	t.Setenv("CONVERSATION_TTL", "1h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.curaemr.io, https://portal.curaemr.io")
	t.Setenv("RATE_LIMIT_PER_SECOND", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "5")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 14, cfg.BookingWindowDays)
	assert.True(t, cfg.UseMemoryStore)
	assert.Equal(t, time.Hour, cfg.ConversationTTL)
	assert.Equal(t, []string{"https://app.curaemr.io", "https://portal.curaemr.io"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 2.5, cfg.RateLimitPerSecond)
	assert.Equal(t, 5, cfg.RateLimitBurst)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("BOOKING_WINDOW_DAYS", "soon")
	t.Setenv("REDIS_TLS", "definitely")
	t.Setenv("EMR_TIMEOUT", "forever")
	t.Setenv("RATE_LIMIT_PER_SECOND", "lots")

	cfg := Load()

	assert.Equal(t, 7, cfg.BookingWindowDays)
	assert.False(t, cfg.RedisTLS)
	assert.Equal(t, 30*time.Second, cfg.EMRTimeout)
	assert.Equal(t, float64(10), cfg.RateLimitPerSecond)
}

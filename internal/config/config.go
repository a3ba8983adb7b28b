package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string

	// Upstream EMR backend
	EMRBaseURL        string
	EMRAPIKey         string
	EMRTimeout        time.Duration
	OrgID             string
	DefaultDept       string
	BookingWindowDays int

	// Per-IP throttle on the public API; zero disables it
	RateLimitPerSecond float64
	RateLimitBurst     int

	// Conversation storage
	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool
	ConversationTTL time.Duration
	UseMemoryStore  bool

	// Sessions / analytics
	DatabaseURL string

	// Free-form assistant turns
	GeminiAPIKey  string
	GeminiModelID string

	// Booking confirmation email
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// Admin endpoints
	AdminJWTSecret string
}

// Load reads configuration from environment variables. A .env file is
// honored in development so local runs match deployed behavior.
func Load() *Config {
	if strings.ToLower(getEnv("ENV", "development")) == "development" {
		_ = godotenv.Load()
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", nil),

		EMRBaseURL:        getEnv("EMR_BASE_URL", "http://localhost:5000"),
		EMRAPIKey:         getEnv("EMR_API_KEY", ""),
		EMRTimeout:        getEnvAsDuration("EMR_TIMEOUT", 30*time.Second),
		OrgID:             getEnv("ORG_ID", ""),
		DefaultDept:       getEnv("DEFAULT_DEPARTMENT", "General Medicine"),
		BookingWindowDays: getEnvAsInt("BOOKING_WINDOW_DAYS", 7),

		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 30),

		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),
		ConversationTTL: getEnvAsDuration("CONVERSATION_TTL", 24*time.Hour),
		UseMemoryStore:  getEnvAsBool("USE_MEMORY_STORE", false),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID: getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Cura EMR"),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

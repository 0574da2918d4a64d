package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Cache backends selectable with CACHE_BACKEND.
const (
	CacheBackendRedis    = "redis"
	CacheBackendPostgres = "postgres"
	CacheBackendMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	DatabaseURL   string
	CacheBackend  string

	VenueConfigPath     string
	WhatsAppNumber      string
	TypingDelay         time.Duration
	BookingHistoryLimit int
	ConversationTTL     time.Duration

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Load reads the configuration from the environment.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		CacheBackend:  strings.ToLower(strings.TrimSpace(getEnv("CACHE_BACKEND", CacheBackendRedis))),

		VenueConfigPath:     getEnv("VENUE_CONFIG_PATH", ""),
		WhatsAppNumber:      getEnv("WHATSAPP_NUMBER", ""),
		TypingDelay:         getEnvAsDuration("TYPING_DELAY", 800*time.Millisecond),
		BookingHistoryLimit: getEnvAsInt("BOOKING_HISTORY_LIMIT", 10),
		ConversationTTL:     getEnvAsDuration("CONVERSATION_TTL", 24*time.Hour),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),
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

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

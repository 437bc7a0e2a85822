package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// Storage
	StoreMode     string // "redis" or "memory"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	EventLogMax   int

	// Domain
	Timezone      string
	EventLookback time.Duration
	StatsInterval time.Duration

	// Identity lookup service
	LookupBaseURL string
	LookupTimeout time.Duration

	// Auth
	AuthMode   string // "jwt" or "none"
	AuthSecret string

	// WebSocket
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		StoreMode:      getEnv("STORE_MODE", "redis"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		Timezone:       getEnv("TIMEZONE", "Asia/Tashkent"),
		LookupBaseURL:  getEnv("LOOKUP_BASE_URL", ""),
		AuthMode:       getEnv("AUTH_MODE", "jwt"),
		AuthSecret:     getEnv("AUTH_SECRET", ""),
	}

	switch config.StoreMode {
	case "redis", "memory":
	default:
		return nil, fmt.Errorf("invalid STORE_MODE %q: must be redis or memory", config.StoreMode)
	}

	switch config.AuthMode {
	case "jwt", "none":
	default:
		return nil, fmt.Errorf("invalid AUTH_MODE %q: must be jwt or none", config.AuthMode)
	}
	if config.AuthMode == "jwt" && config.AuthSecret == "" {
		return nil, fmt.Errorf("AUTH_SECRET is required when AUTH_MODE=jwt")
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	config.RedisDB = redisDB

	eventLogMax, err := strconv.Atoi(getEnv("EVENT_LOG_MAX", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid EVENT_LOG_MAX: %w", err)
	}
	config.EventLogMax = eventLogMax

	lookback, err := strconv.Atoi(getEnv("EVENT_LOOKBACK", "300"))
	if err != nil {
		return nil, fmt.Errorf("invalid EVENT_LOOKBACK: %w", err)
	}
	config.EventLookback = time.Duration(lookback) * time.Second

	statsInterval, err := strconv.Atoi(getEnv("STATS_INTERVAL", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_INTERVAL: %w", err)
	}
	config.StatsInterval = time.Duration(statsInterval) * time.Second

	lookupTimeout, err := strconv.Atoi(getEnv("LOOKUP_TIMEOUT", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOOKUP_TIMEOUT: %w", err)
	}
	config.LookupTimeout = time.Duration(lookupTimeout) * time.Second

	// Parse WebSocket timeouts
	wsReadTimeout, err := strconv.Atoi(getEnv("WS_READ_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_READ_TIMEOUT: %w", err)
	}
	config.WSReadTimeout = time.Duration(wsReadTimeout) * time.Second

	wsWriteTimeout, err := strconv.Atoi(getEnv("WS_WRITE_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_WRITE_TIMEOUT: %w", err)
	}
	config.WSWriteTimeout = time.Duration(wsWriteTimeout) * time.Second

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

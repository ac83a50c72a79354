package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything the server needs from the environment so main
// stays lean.
type Config struct {
	Addr        string
	PostgresURL string
	Redis       RedisConfig
	Federation  FederationConfig
	RateLimit   RateLimitConfig
	AttemptLog  AttemptLogConfig
}

// RedisConfig holds connection settings for the shared Redis instance.
// An empty URL means Redis is not configured and in-memory fallbacks apply.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FederationConfig holds credentials and endpoint for the federation
// license webservice.
type FederationConfig struct {
	BaseURL  string
	Operator string
	Secret   string
	Timeout  time.Duration
}

// RateLimitConfig bounds admission attempts per browsing session.
type RateLimitConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// AttemptLogConfig configures the registration attempt audit pipeline.
type AttemptLogConfig struct {
	BufferSize   int
	KafkaBrokers string
	KafkaTopic   string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:        getEnv("STARTLINE_ADDR", ":8080"),
		PostgresURL: os.Getenv("STARTLINE_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("STARTLINE_REDIS_URL"),
			PoolSize:     getEnvInt("STARTLINE_REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("STARTLINE_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Federation: FederationConfig{
			BaseURL:  os.Getenv("FEDERATION_WS_URL"),
			Operator: os.Getenv("FEDERATION_WS_OPERATOR"),
			Secret:   os.Getenv("FEDERATION_WS_SECRET"),
			Timeout:  10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			MaxAttempts: getEnvInt("ADMISSION_RATE_MAX_ATTEMPTS", 5),
			Window:      time.Duration(getEnvInt("ADMISSION_RATE_WINDOW_MINUTES", 10)) * time.Minute,
		},
		AttemptLog: AttemptLogConfig{
			BufferSize:   getEnvInt("ATTEMPT_LOG_BUFFER", 256),
			KafkaBrokers: os.Getenv("ATTEMPT_LOG_KAFKA_BROKERS"),
			KafkaTopic:   getEnv("ATTEMPT_LOG_KAFKA_TOPIC", "registration.attempts"),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

package config

import (
	"time"

	"github.com/joho/godotenv"
)

// Config holds the core runtime configuration for a service instance.
// It supports environment-based initialization, with sensible defaults.
// Both the requester and the solver binaries load the same shape; fields
// that only apply to one side are simply ignored by the other.
type Config struct {
	ServiceName string // e.g. "rfq-requester", "rfq-solver"
	Env         string // e.g. "dev", "uat", "prod"
	LogLevel    string // "debug", "info", etc.

	NATSURL string // e.g. nats://localhost:4222
	Port    int    // service HTTP or metrics port

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int

	// Subscription resilience
	SubscribeRetryDelay time.Duration // delay between resubscribe attempts

	// Requester-side response handling. Zero means "wait forever",
	// matching the protocol's lack of a built-in timeout.
	ResponseTimeout time.Duration

	// Price feed (solver side)
	PriceFeedURL        string // HTTP base URL of the external price feed
	PriceFeedWSURL      string // optional websocket stream of price ticks
	PriceFeedAPIKey     string // static API key (overridden by secrets manager)
	PriceFeedSecretName string // AWS Secrets Manager name holding {"api_key": ...}
	AWSRegion           string

	// Price cache
	PriceCacheTTL time.Duration
	RedisAddr     string // optional; in-memory cache when empty
	RedisDB       int
	RedisPass     string

	// Outbound rate limiting toward the price feed
	FeedRequestsPerSecond int
	FeedBurst             int
}

// Load loads configuration from environment variables and .env file if present.
func Load() *Config {
	// load .env silently (no error if missing)
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName:         GetEnv("SERVICE_NAME", "rfq"),
		Env:                 GetEnv("ENV", "dev"),
		LogLevel:            GetEnv("LOG_LEVEL", "info"),
		NATSURL:             GetEnv("NATS_URL", "nats://localhost:4222"),
		Port:                GetEnvInt("PORT", 9020),
		HTTPReadTimeout:     GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout:    GetEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
		HTTPIdleTimeout:     GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:       GetEnvInt("HTTP_BODY_LIMIT", 1*1024*1024),
		SubscribeRetryDelay: GetEnvDuration("SUBSCRIBE_RETRY_DELAY", 3*time.Second),
		ResponseTimeout:     GetEnvDuration("RESPONSE_TIMEOUT", 0),

		PriceFeedURL:        GetEnv("PRICE_FEED_URL", "http://localhost:8085"),
		PriceFeedWSURL:      GetEnv("PRICE_FEED_WS_URL", ""),
		PriceFeedAPIKey:     GetEnv("PRICE_FEED_API_KEY", ""),
		PriceFeedSecretName: GetEnv("PRICE_FEED_SECRET_NAME", ""),
		AWSRegion:           GetEnv("AWS_REGION", "us-east-2"),

		PriceCacheTTL: GetEnvDuration("PRICE_CACHE_TTL", 5*time.Second),
		RedisAddr:     GetEnv("REDIS_ADDR", ""),
		RedisDB:       GetEnvInt("REDIS_DB", 0),
		RedisPass:     GetEnv("REDIS_PASS", ""),

		FeedRequestsPerSecond: GetEnvInt("FEED_RPS", 10),
		FeedBurst:             GetEnvInt("FEED_BURST", 20),
	}

	return cfg
}

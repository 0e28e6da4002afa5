package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DevTicketSecret signs tickets when TICKET_SIGNING_SECRET is unset. It is
// only accepted in development.
const DevTicketSecret = "dev-ticket-secret"

var ErrInsecureTicketSecret = errors.New("TICKET_SIGNING_SECRET must be set outside development")

type Config struct {
	// Server configuration
	Environment string
	AppURL      string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string

	// Payment configuration
	PaymentProvider  string
	OmisePublicKey   string
	OmiseSecretKey   string
	OmiseSourceType  string
	Currency         string
	PaymentReturnURL string

	// Broker configuration
	AMQPURL      string
	AMQPExchange string

	// Tickets
	TicketSigningSecret string

	// Timeouts
	CheckoutLockTTL time.Duration
	ChatTTL         time.Duration
	DraftTTL        time.Duration

	// Rate limiting
	LikeRateLimit    int
	CouponRateLimit  int
	ScanRateLimit    int
	RateLimitWindow  time.Duration
	AntiBotMaxPerMin int

	// Monitoring
	EnableMetrics bool
}

// LoadConfig reads the environment, after loading an optional .env file.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: could not load .env: %v", err)
	}

	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),
		AppURL:      getEnv("APP_URL", "http://localhost:8090"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUserID:       getEnv("PUBNUB_USER_ID", "prefest-server"),

		// Payments
		PaymentProvider:  getEnv("PAYMENT_PROVIDER", "sandbox"),
		OmisePublicKey:   getEnv("OMISE_PUBLIC_KEY", ""),
		OmiseSecretKey:   getEnv("OMISE_SECRET_KEY", ""),
		OmiseSourceType:  getEnv("OMISE_SOURCE_TYPE", "promptpay"),
		Currency:         getEnv("PAYMENT_CURRENCY", "thb"),
		PaymentReturnURL: getEnv("PAYMENT_RETURN_URL", "http://localhost:8090/checkout/return"),

		// Broker
		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "prefest.events"),

		// Tickets
		TicketSigningSecret: getEnv("TICKET_SIGNING_SECRET", DevTicketSecret),

		// Timeouts
		CheckoutLockTTL: getEnvAsDuration("CHECKOUT_LOCK_TTL", "30s"),
		ChatTTL:         getEnvAsDuration("CHAT_TTL", "24h"),
		DraftTTL:        getEnvAsDuration("DRAFT_TTL", "168h"),

		// Rate limiting
		LikeRateLimit:    getEnvAsInt("LIKE_RATE_LIMIT", 60),
		CouponRateLimit:  getEnvAsInt("COUPON_RATE_LIMIT", 10),
		ScanRateLimit:    getEnvAsInt("SCAN_RATE_LIMIT", 120),
		RateLimitWindow:  getEnvAsDuration("RATE_LIMIT_WINDOW", "1m"),
		AntiBotMaxPerMin: getEnvAsInt("ANTIBOT_MAX_PER_MIN", 300),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Validate rejects settings the server must not run with.
func (c *Config) Validate() error {
	if c.IsDevelopment() {
		return nil
	}
	if c.TicketSigningSecret == "" || c.TicketSigningSecret == DevTicketSecret {
		return ErrInsecureTicketSecret
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

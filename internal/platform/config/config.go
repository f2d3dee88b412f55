package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures the service-level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string

	PostgresURL  string
	RedisURL     string
	KafkaBrokers []string
	KafkaGroup   string

	// SubscriptionBuffer bounds each subscriber's delivery buffer; a
	// subscriber that falls this far behind is disconnected.
	SubscriptionBuffer int

	// FeedDataFields lists the card data dot-paths forwarded to feed
	// subscribers. Empty means card data is stripped entirely.
	FeedDataFields []string

	// UsersFile optionally seeds the user directory from a JSON file.
	UsersFile string

	// RateLimit caps card API requests per user per minute. Zero disables it.
	RateLimit int

	ShutdownTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("CARDFEED_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	buffer := 128
	if v := os.Getenv("CARDFEED_SUBSCRIPTION_BUFFER"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			buffer = parsed
		}
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = strings.Split(v, ",")
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "cardfeed"
	}

	rateLimit := 0
	if v := os.Getenv("CARDFEED_RATE_LIMIT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			rateLimit = parsed
		}
	}

	var dataFields []string
	if v := os.Getenv("CARDFEED_DATA_FIELDS"); v != "" {
		dataFields = strings.Split(v, ",")
	}

	return Server{
		Addr:               addr,
		JWTSigningKey:      jwtSigningKey,
		PostgresURL:        os.Getenv("POSTGRES_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		KafkaBrokers:       brokers,
		KafkaGroup:         group,
		SubscriptionBuffer: buffer,
		FeedDataFields:     dataFields,
		UsersFile:          os.Getenv("CARDFEED_USERS_FILE"),
		RateLimit:          rateLimit,
		ShutdownTimeout:    10 * time.Second,
	}
}

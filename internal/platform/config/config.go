// Package config loads process configuration from the environment so main
// stays lean. The gateway consumes this surface; it does not own it.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the verification gateway reads at startup.
type Config struct {
	Addr string

	// EncryptionEnabled toggles both envelope layers. Disabled means identity
	// transforms everywhere and exists for local testing only.
	EncryptionEnabled bool

	// QRWindow is the token validity window; QRMargin absorbs clock skew
	// between the gateway and scanning devices. Effective TTL is the sum.
	QRWindow time.Duration
	QRMargin time.Duration
	// QRSize is the rendered image edge length in pixels.
	QRSize int

	// IdentitySourceURL is the internal identity API consulted during
	// registration and checks.
	IdentitySourceURL     string
	IdentitySourceTimeout time.Duration

	PostgresDSN string
	RedisAddr   string
	// ContextCacheTTL bounds how long a resolved institution/application
	// context may be served from cache.
	ContextCacheTTL time.Duration

	KafkaBrokers []string
	KafkaTopic   string
}

// FromEnv builds a Config from environment variables, applying development
// defaults where unset.
func FromEnv() Config {
	return Config{
		Addr:                  getenv("IDGATE_ADDR", ":8080"),
		EncryptionEnabled:     os.Getenv("IDGATE_ENCRYPTION_DISABLED") != "true",
		QRWindow:              seconds("IDGATE_QR_WINDOW_SEC", 30),
		QRMargin:              seconds("IDGATE_QR_MARGIN_SEC", 10),
		QRSize:                intenv("IDGATE_QR_SIZE", 150),
		IdentitySourceURL:     getenv("IDGATE_IDENTITY_SOURCE_URL", "http://localhost:8081"),
		IdentitySourceTimeout: seconds("IDGATE_IDENTITY_SOURCE_TIMEOUT_SEC", 5),
		PostgresDSN:           os.Getenv("IDGATE_POSTGRES_DSN"),
		RedisAddr:             os.Getenv("IDGATE_REDIS_ADDR"),
		ContextCacheTTL:       seconds("IDGATE_CONTEXT_CACHE_TTL_SEC", 300),
		KafkaBrokers:          list(os.Getenv("IDGATE_KAFKA_BROKERS")),
		KafkaTopic:            getenv("IDGATE_KAFKA_TOPIC", "idgate.audit"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intenv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func seconds(key string, fallback int) time.Duration {
	return time.Duration(intenv(key, fallback)) * time.Second
}

func list(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

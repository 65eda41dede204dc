package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration so main stays lean.
type Config struct {
	Addr              string
	PostgresDSN       string
	RedisURL          string
	KafkaBrokers      []string
	AuditTopic        string
	AuthorityBaseURL  string
	JWTSigningKey     string
	AuthorityCacheTTL time.Duration
	ShutdownTimeout   time.Duration
}

// FromEnv builds a Config from environment variables. Empty PostgresDSN,
// RedisURL, or KafkaBrokers select the in-memory / disabled variants.
func FromEnv() Config {
	cfg := Config{
		Addr:              getenv("QUALINOVA_ADDR", ":8080"),
		PostgresDSN:       os.Getenv("QUALINOVA_POSTGRES_DSN"),
		RedisURL:          os.Getenv("QUALINOVA_REDIS_URL"),
		AuditTopic:        getenv("QUALINOVA_AUDIT_TOPIC", "qualinova.audit"),
		AuthorityBaseURL:  os.Getenv("QUALINOVA_AUTHORITY_URL"),
		JWTSigningKey:     os.Getenv("QUALINOVA_JWT_SIGNING_KEY"),
		AuthorityCacheTTL: getenvDuration("QUALINOVA_AUTHORITY_CACHE_TTL", 5*time.Minute),
		ShutdownTimeout:   getenvDuration("QUALINOVA_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	if brokers := os.Getenv("QUALINOVA_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if cfg.JWTSigningKey == "" {
		// Development default - must be overridden in production.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

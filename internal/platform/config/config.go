package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"registrar/pkg/platform/middleware/metadata"
	pkgstrings "registrar/pkg/platform/strings"
)

// Ledger backends.
const (
	LedgerMemory   = "memory"
	LedgerPostgres = "postgres"
	LedgerRedis    = "redis"
)

// Catalog sources.
const (
	CatalogYAML     = "yaml"
	CatalogPostgres = "postgres"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string

	// TrustedProxies are the CIDRs or addresses allowed to set X-Forwarded-For.
	TrustedProxies []string

	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig

	LedgerBackend string
	Catalog       CatalogConfig
	Registration  RegistrationConfig
	Staff         StaffConfig
	Tracing       TracingConfig
	RateLimit     RateLimitConfig
}

// DatabaseConfig configures the Postgres pool. Empty URL disables it.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// AutoMigrate applies the embedded schema migrations at startup.
	AutoMigrate bool
}

// RedisConfig configures the Redis client. Empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures registration event publication. Empty Brokers disables it.
type KafkaConfig struct {
	Brokers         string
	Topic           string
	Acks            string
	Retries         int
	DeliveryTimeout time.Duration
}

// CatalogConfig selects and tunes the course definition source.
type CatalogConfig struct {
	Source          string
	File            string
	RefreshInterval time.Duration
	// Watch reloads the YAML file as soon as it changes.
	Watch         bool
	WatchDebounce time.Duration
}

// RegistrationConfig tunes the optimistic submission protocol.
type RegistrationConfig struct {
	RetryBudget     int
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration
	StoreTimeout    time.Duration
	StatusCacheTTL  time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
}

// StaffConfig configures administrative bearer tokens.
type StaffConfig struct {
	SigningKey string
	Issuer     string
	TokenTTL   time.Duration
}

// Rate limit backends.
const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

// RateLimitConfig throttles submissions per client IP. SubmitLimit 0 disables it.
type RateLimitConfig struct {
	Backend      string
	SubmitLimit  int
	SubmitWindow time.Duration
}

// TracingConfig selects the span exporter. Exporter "none" keeps the no-op provider.
type TracingConfig struct {
	Exporter     string
	OTLPEndpoint string
	SampleRate   float64
	ServiceName  string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	signingKey := os.Getenv("STAFF_SIGNING_KEY")
	if signingKey == "" {
		// Use a default for development - should be overridden in production
		signingKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:        envString("REGISTRAR_ADDR", ":8080"),
		Environment: envString("REGISTRAR_ENV", "development"),
		LogLevel:    envString("LOG_LEVEL", "info"),

		TrustedProxies: pkgstrings.SplitList([]string{os.Getenv("TRUSTED_PROXIES")}),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			AutoMigrate:     envBool("DATABASE_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 20),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:         os.Getenv("KAFKA_BROKERS"),
			Topic:           envString("KAFKA_TOPIC", "registrar.registrations"),
			Acks:            envString("KAFKA_ACKS", "all"),
			Retries:         envInt("KAFKA_RETRIES", 3),
			DeliveryTimeout: envDuration("KAFKA_DELIVERY_TIMEOUT", 30*time.Second),
		},
		LedgerBackend: strings.ToLower(envString("LEDGER_BACKEND", LedgerMemory)),
		Catalog: CatalogConfig{
			Source:          strings.ToLower(envString("CATALOG_SOURCE", CatalogYAML)),
			File:            envString("CATALOG_FILE", "courses.yaml"),
			RefreshInterval: envDuration("CATALOG_REFRESH_INTERVAL", time.Minute),
			Watch:           envBool("CATALOG_WATCH", false),
			WatchDebounce:   envDuration("CATALOG_WATCH_DEBOUNCE", 500*time.Millisecond),
		},
		Registration: RegistrationConfig{
			RetryBudget:     envInt("RETRY_BUDGET", 5),
			BaseBackoff:     envDuration("RETRY_BASE_BACKOFF", 5*time.Millisecond),
			MaxBackoff:      envDuration("RETRY_MAX_BACKOFF", 50*time.Millisecond),
			StoreTimeout:    envDuration("STORE_TIMEOUT", 2*time.Second),
			StatusCacheTTL:  envDuration("STATUS_CACHE_TTL", 2*time.Second),
			BreakerFailures: envInt("LEDGER_BREAKER_FAILURES", 5),
			BreakerCooldown: envDuration("LEDGER_BREAKER_COOLDOWN", time.Second),
		},
		Staff: StaffConfig{
			SigningKey: signingKey,
			Issuer:     envString("STAFF_TOKEN_ISSUER", "registrar"),
			TokenTTL:   envDuration("STAFF_TOKEN_TTL", 8*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Backend:      strings.ToLower(envString("RATELIMIT_BACKEND", RateLimitMemory)),
			SubmitLimit:  envInt("RATELIMIT_SUBMIT_LIMIT", 20),
			SubmitWindow: envDuration("RATELIMIT_SUBMIT_WINDOW", time.Minute),
		},
		Tracing: TracingConfig{
			Exporter:     strings.ToLower(envString("TRACE_EXPORTER", "none")),
			OTLPEndpoint: envString("OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   envFloat("TRACE_SAMPLE_RATE", 1.0),
			ServiceName:  envString("TRACE_SERVICE_NAME", "registrar"),
		},
	}
}

// Validate rejects combinations the server cannot start with.
func (s Server) Validate() error {
	switch s.LedgerBackend {
	case LedgerMemory:
	case LedgerPostgres:
		if s.Database.URL == "" {
			return fmt.Errorf("LEDGER_BACKEND=postgres requires DATABASE_URL")
		}
	case LedgerRedis:
		if s.Redis.URL == "" {
			return fmt.Errorf("LEDGER_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", s.LedgerBackend)
	}

	switch s.Catalog.Source {
	case CatalogYAML:
		if s.Catalog.File == "" {
			return fmt.Errorf("CATALOG_SOURCE=yaml requires CATALOG_FILE")
		}
	case CatalogPostgres:
		if s.Database.URL == "" {
			return fmt.Errorf("CATALOG_SOURCE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown CATALOG_SOURCE %q", s.Catalog.Source)
	}

	if s.Registration.RetryBudget < 1 {
		return fmt.Errorf("RETRY_BUDGET must be at least 1")
	}
	if s.Registration.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	switch s.RateLimit.Backend {
	case RateLimitMemory:
	case RateLimitRedis:
		if s.Redis.URL == "" {
			return fmt.Errorf("RATELIMIT_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown RATELIMIT_BACKEND %q", s.RateLimit.Backend)
	}
	if s.RateLimit.SubmitLimit > 0 && s.RateLimit.SubmitWindow <= 0 {
		return fmt.Errorf("RATELIMIT_SUBMIT_WINDOW must be positive")
	}
	switch s.Tracing.Exporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("unknown TRACE_EXPORTER %q", s.Tracing.Exporter)
	}
	if _, err := metadata.ParseTrustedProxies(s.TrustedProxies); err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	if s.Environment == "production" && s.Staff.SigningKey == "dev-secret-key-change-in-production" {
		return fmt.Errorf("STAFF_SIGNING_KEY must be set in production")
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

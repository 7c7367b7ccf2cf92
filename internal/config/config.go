package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/middleware"
)

// Store drivers.
const (
	StoreDriverRedis    = "redis"
	StoreDriverPostgres = "postgres"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"STOREFRONT_HTTP_PORT" envDefault:"8010"`

	// Key-value store
	StoreDriver    string `env:"STORE_DRIVER" envDefault:"redis"`
	StoreNamespace string `env:"STORE_NAMESPACE" envDefault:"storefront"`

	// Redis
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"ecommerce"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"ecommerce_secret"`
	PostgresDB   string `env:"STOREFRONT_DB_NAME" envDefault:"storefront_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns   int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns   int32  `env:"DB_MIN_CONNS" envDefault:"2"`

	SlowOpThreshold time.Duration `env:"SLOW_OP_THRESHOLD" envDefault:"200ms"`

	// Kafka. Empty disables event publishing.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Session and reset lifetimes
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" envDefault:"24h"`
	ResetTokenTTL time.Duration `env:"RESET_TOKEN_TTL" envDefault:"15m"`

	// Reset token delivery. Empty disables delivery.
	ResetWebhookURL string `env:"RESET_WEBHOOK_URL"`

	AuthFallbackPath string `env:"AUTH_FALLBACK_PATH" envDefault:"/login"`

	// Login and password-reset throttling, per client
	AuthRateLimitRPS   float64 `env:"AUTH_RATE_LIMIT_RPS" envDefault:"1"`
	AuthRateLimitBurst int     `env:"AUTH_RATE_LIMIT_BURST" envDefault:"5"`
	TrustProxyHeaders  bool    `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return LoadFrom(nil)
}

// LoadFrom reads configuration from the given variables instead of the
// process environment. A nil map means the process environment.
func LoadFrom(environment map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadWithEnvironment(cfg, environment); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	return cfg, nil
}

// Validate implements pkgconfig.Validator.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.StoreDriver {
	case StoreDriverRedis, StoreDriverPostgres:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q: want %q or %q", c.StoreDriver, StoreDriverRedis, StoreDriverPostgres)
	}
	if c.StoreNamespace == "" {
		return fmt.Errorf("STORE_NAMESPACE must not be empty")
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE must be positive, got %s", c.SessionMaxAge)
	}
	if c.ResetTokenTTL <= 0 {
		return fmt.Errorf("RESET_TOKEN_TTL must be positive, got %s", c.ResetTokenTTL)
	}
	if c.AuthRateLimitRPS <= 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT_RPS must be positive, got %v", c.AuthRateLimitRPS)
	}
	if c.AuthRateLimitBurst < 1 {
		return fmt.Errorf("AUTH_RATE_LIMIT_BURST must be at least 1, got %d", c.AuthRateLimitBurst)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0 and 1, got %v", c.OTELSampleRate)
	}
	return nil
}

// AuthRateLimit returns the throttle applied to login and reset requests.
func (c *Config) AuthRateLimit() middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	rl.RPS = c.AuthRateLimitRPS
	rl.Burst = c.AuthRateLimitBurst
	rl.TrustProxyHeaders = c.TrustProxyHeaders
	return rl
}

// Redis returns the Redis connection settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// Postgres returns the PostgreSQL pool settings.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		User:     c.PostgresUser,
		Password: c.PostgresPass,
		DBName:   c.PostgresDB,
		SSLMode:  c.PostgresSSL,
		MaxConns: c.DBMaxConns,
		MinConns: c.DBMinConns,
	}
}

package config

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	MongoURI      string `envconfig:"MONGO_URI"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"gigconnect"`
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RabbitURL     string `envconfig:"RABBIT_URL"`
	JWTPublicKey  string `envconfig:"JWT_PUBLIC_KEY"`
	JWTIssuer     string `envconfig:"JWT_ISSUER"`
	OTLPEndpoint  string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	HTTPAddr      string `envconfig:"HTTP_ADDR" default:":8080"`
	// MetricsAddr serves /metrics for the background workers. Empty disables it.
	MetricsAddr   string `envconfig:"METRICS_ADDR"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	StoreDriver   string `envconfig:"STORE_DRIVER" default:"postgres"`

	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	IdempotencyTTL  time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	ProfileCacheTTL time.Duration `envconfig:"PROFILE_CACHE_TTL" default:"5m"`

	OutboxInterval  time.Duration `envconfig:"OUTBOX_INTERVAL" default:"1s"`
	OutboxBatchSize int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	AuditQueue      string        `envconfig:"AUDIT_QUEUE" default:"gc.audit"`

	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	BookmarkPerMinute  int `envconfig:"BOOKMARK_RATE_LIMIT_PER_MINUTE" default:"30"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case StoreDriverMemory:
	default:
		return errors.Newf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.OutboxBatchSize <= 0 {
		return errors.New("OUTBOX_BATCH_SIZE must be positive")
	}
	if c.RateLimitPerMinute <= 0 || c.BookmarkPerMinute <= 0 {
		return errors.New("rate limits must be positive")
	}
	return nil
}

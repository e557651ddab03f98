package domain

import "time"

// Config holds the complete Heron configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines backend availability
	Tier Tier `json:"tier"`

	// Adjudication pipeline settings
	Adjudication AdjudicationConfig `json:"adjudication"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// AdjudicationConfig holds pipeline tuning knobs.
type AdjudicationConfig struct {
	// ExtractionTimeout bounds the document extraction collaborator.
	// On timeout the pipeline proceeds with a degraded extraction.
	ExtractionTimeout time.Duration `json:"extractionTimeout"`

	// MaxFraudWorkers bounds concurrent CEL rule evaluations.
	MaxFraudWorkers int `json:"maxFraudWorkers"`

	// ReviewScoreThreshold routes claims at or above this fraud score
	// to manual review.
	ReviewScoreThreshold float64 `json:"reviewScoreThreshold"`

	// ReviewFlagCount routes claims with this many fraud flags to
	// manual review regardless of score.
	ReviewFlagCount int `json:"reviewFlagCount"`

	// ReadjudicateOnAppeal makes the async worker re-run the pipeline
	// when an appeal is filed. Off by default: appeals go to a human.
	ReadjudicateOnAppeal bool `json:"readjudicateOnAppeal"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds

	// RateLimitPerMinute throttles requests per tenant. Zero disables.
	RateLimitPerMinute int64 `json:"rateLimitPerMinute"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"

	// TierEnterprise includes multi-node, SSO, etc.
	TierEnterprise Tier = "enterprise"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			ReadTimeout:        30,
			WriteTimeout:       30,
			RateLimitPerMinute: 300,
		},
		Tier: TierCommunity,
		Adjudication: AdjudicationConfig{
			ExtractionTimeout:    5 * time.Second,
			MaxFraudWorkers:      5,
			ReviewScoreThreshold: 0.35,
			ReviewFlagCount:      3,
			ReadjudicateOnAppeal: false,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./heron.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300, // 5 minutes
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "heron",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "heron",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}

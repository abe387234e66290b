package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	GRPCAddr        string        `envconfig:"GRPC_ADDR" default:":9090"`
	Environment     string        `envconfig:"ENV" default:"production"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`

	// Storage
	DatabaseDSN string        `envconfig:"DATABASE_DSN"`
	RedisAddr   string        `envconfig:"REDIS_ADDR"`
	ResultTTL   time.Duration `envconfig:"RESULT_TTL" default:"24h"`

	// Admin
	JWTSecret     string        `envconfig:"JWT_SECRET" default:"dev-secret"`
	JWTAudience   string        `envconfig:"JWT_AUDIENCE"`
	AdminPassword string        `envconfig:"ADMIN_PASSWORD" default:"admin123"`
	TokenTTL      time.Duration `envconfig:"ADMIN_TOKEN_TTL" default:"8h"`

	// Pipeline
	ReviewQueue   bool          `envconfig:"REVIEW_QUEUE" default:"false"`
	DecodeTimeout time.Duration `envconfig:"DECODE_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.DecodeTimeout <= 0 {
		return nil, fmt.Errorf("load config: DECODE_TIMEOUT must be positive, got %s", cfg.DecodeTimeout)
	}
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// UsesDatabase reports whether records go to Postgres instead of memory.
func (c *Config) UsesDatabase() bool {
	return c.DatabaseDSN != ""
}

// UsesRedis reports whether result caching is enabled.
func (c *Config) UsesRedis() bool {
	return c.RedisAddr != ""
}

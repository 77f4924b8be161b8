package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Registry backends.
const (
	RegistryPostgres = "postgres"
	RegistryFile     = "file"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	SiteRegistry     string `mapstructure:"SITE_REGISTRY"`
	SitesFile        string `mapstructure:"SITES_FILE"`
	SiteDSNTemplate  string `mapstructure:"SITE_DSN_TEMPLATE"`
	SiteDriver       string `mapstructure:"SITE_DRIVER"`
	SiteMaxOpenConns int    `mapstructure:"SITE_MAX_OPEN_CONNS"`

	QueriesDir    string `mapstructure:"QUERIES_DIR"`
	MigrationsDir string `mapstructure:"MIGRATIONS_DIR"`

	CacheBackend string        `mapstructure:"CACHE_BACKEND"`
	CacheTTL     time.Duration `mapstructure:"CACHE_TTL"`
	RedisURL     string        `mapstructure:"REDIS_URL"`

	IndicatorConcurrency     int `mapstructure:"INDICATOR_CONCURRENCY"`
	SlowIndicatorConcurrency int `mapstructure:"SLOW_INDICATOR_CONCURRENCY"`
	SiteConcurrency          int `mapstructure:"SITE_CONCURRENCY"`

	KafkaBrokers []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string   `mapstructure:"KAFKA_TOPIC"`

	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"SITE_REGISTRY", "SITES_FILE", "SITE_DSN_TEMPLATE", "SITE_DRIVER", "SITE_MAX_OPEN_CONNS",
	"QUERIES_DIR", "MIGRATIONS_DIR",
	"CACHE_BACKEND", "CACHE_TTL", "REDIS_URL",
	"INDICATOR_CONCURRENCY", "SLOW_INDICATOR_CONCURRENCY", "SITE_CONCURRENCY",
	"KAFKA_BROKERS", "KAFKA_TOPIC",
	"REQUEST_TIMEOUT", "CORS_ORIGINS",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("SITE_REGISTRY", RegistryPostgres)
	v.SetDefault("SITES_FILE", "sites.yaml")
	v.SetDefault("SITE_DSN_TEMPLATE", "preart:preart@tcp(localhost:3306)/{database}")
	v.SetDefault("SITE_DRIVER", "mysql")
	v.SetDefault("SITE_MAX_OPEN_CONNS", 20)
	v.SetDefault("QUERIES_DIR", "./queries")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("CACHE_BACKEND", CacheMemory)
	v.SetDefault("CACHE_TTL", "300s")
	v.SetDefault("INDICATOR_CONCURRENCY", 8)
	v.SetDefault("SLOW_INDICATOR_CONCURRENCY", 2)
	v.SetDefault("SITE_CONCURRENCY", 4)
	v.SetDefault("KAFKA_TOPIC", "preart.reports")
	v.SetDefault("REQUEST_TIMEOUT", "120s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList accepts both an already-decoded list and a raw comma string.
func splitList(decoded []string, raw string) []string {
	if len(decoded) == 0 {
		decoded = []string{raw}
	}
	var out []string
	for _, item := range decoded {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// KafkaEnabled reports whether report events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Validate checks that the configuration is usable before anything connects.
func (c *Config) Validate() error {
	switch c.SiteRegistry {
	case RegistryPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when SITE_REGISTRY is %q", RegistryPostgres)
		}
	case RegistryFile:
		if c.SitesFile == "" {
			return fmt.Errorf("SITES_FILE is required when SITE_REGISTRY is %q", RegistryFile)
		}
	default:
		return fmt.Errorf("SITE_REGISTRY must be %q or %q, got %q", RegistryPostgres, RegistryFile, c.SiteRegistry)
	}

	switch c.CacheBackend {
	case CacheMemory:
	case CacheRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when CACHE_BACKEND is %q", CacheRedis)
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", CacheMemory, CacheRedis, c.CacheBackend)
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.IndicatorConcurrency < 1 || c.SlowIndicatorConcurrency < 1 || c.SiteConcurrency < 1 {
		return fmt.Errorf("concurrency limits must be at least 1")
	}
	if c.SlowIndicatorConcurrency > c.IndicatorConcurrency {
		return fmt.Errorf("SLOW_INDICATOR_CONCURRENCY (%d) cannot exceed INDICATOR_CONCURRENCY (%d)",
			c.SlowIndicatorConcurrency, c.IndicatorConcurrency)
	}
	return nil
}

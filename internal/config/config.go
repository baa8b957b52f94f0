// Package config defines the polyinsider configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields are populated from a TOML file
// and then optionally overridden by POLYINSIDER_* environment variables.
type Config struct {
	Polymarket  PolymarketConfig `toml:"polymarket"`
	Database    DatabaseConfig   `toml:"database"`
	Collection  CollectionConfig `toml:"collection"`
	Redis       RedisConfig      `toml:"redis"`
	Archive     ArchiveConfig    `toml:"archive"`
	Server      ServerConfig     `toml:"server"`
	LogLevel    string           `toml:"log_level"`
	LogFormat   string           `toml:"log_format"`
	Environment string           `toml:"environment"`
}

// PolymarketConfig holds the public API endpoints and client throttling.
type PolymarketConfig struct {
	GammaHost         string   `toml:"gamma_host"`
	DataHost          string   `toml:"data_host"`
	APIKey            string   `toml:"api_key"`
	Timeout           duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// DatabaseConfig selects and configures the entity store.
type DatabaseConfig struct {
	Driver        string `toml:"driver"` // "postgres" or "sqlite"
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Name          string `toml:"name"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	SQLitePath    string `toml:"sqlite_path"`
	RunMigrations bool   `toml:"run_migrations"`
}

// CollectionConfig tunes the collectors and the serve loop.
type CollectionConfig struct {
	Interval              duration `toml:"interval"`
	MaxTraders            int      `toml:"max_traders"`
	BatchSize             int      `toml:"batch_size"`
	PositionSizeThreshold float64  `toml:"position_size_threshold"`
	TradesPageSize        int      `toml:"trades_page_size"`
	ActivityLimit         int      `toml:"activity_limit"`
	BackfillMarkets       bool     `toml:"backfill_markets"`
	ActiveOnly            bool     `toml:"active_only"`
	Watchlist             string   `toml:"watchlist"`
}

// RedisConfig holds the optional market cache settings.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	CacheTTL   duration `toml:"cache_ttl"`
}

// ArchiveConfig holds the optional S3-compatible snapshot archive.
type ArchiveConfig struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// ServerConfig holds the read-only HTTP API settings. An empty APIKey
// disables authentication; a zero RequestsPerSecond disables throttling.
type ServerConfig struct {
	Enabled           bool     `toml:"enabled"`
	Port              int      `toml:"port"`
	APIKey            string   `toml:"api_key"`
	CORSOrigins       []string `toml:"cors_origins"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
}

// duration wraps time.Duration so TOML strings like "5m" decode.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaHost:         "https://gamma-api.polymarket.com",
			DataHost:          "https://data-api.polymarket.com",
			Timeout:           duration{30 * time.Second},
			RequestsPerSecond: 10,
		},
		Database: DatabaseConfig{
			Driver:        "postgres",
			Host:          "localhost",
			Port:          5432,
			Name:          "polyinsider",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			SQLitePath:    "polyinsider.db",
			RunMigrations: true,
		},
		Collection: CollectionConfig{
			Interval:              duration{5 * time.Minute},
			MaxTraders:            1000,
			BatchSize:             100,
			PositionSizeThreshold: 1.0,
			TradesPageSize:        500,
			ActivityLimit:         500,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "polyinsider",
			CacheTTL:   duration{10 * time.Minute},
		},
		Archive: ArchiveConfig{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polyinsider-snapshots",
			ForcePathStyle: true,
			Prefix:         "snapshots",
		},
		Server: ServerConfig{
			Port:              8000,
			RequestsPerSecond: 20,
			Burst:             40,
		},
		LogLevel:    "info",
		LogFormat:   "json",
		Environment: "development",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate reports every invalid or missing value in one error.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if f := strings.ToLower(c.LogFormat); f != "json" && f != "text" {
		errs = append(errs, fmt.Sprintf("unknown log_format %q (valid: json, text)", c.LogFormat))
	}

	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.DataHost == "" {
		errs = append(errs, "polymarket: data_host must not be empty")
	}
	if c.Polymarket.Timeout.Duration <= 0 {
		errs = append(errs, "polymarket: timeout must be > 0")
	}
	if c.Polymarket.RequestsPerSecond < 0 {
		errs = append(errs, "polymarket: requests_per_second must be >= 0")
	}

	switch c.Database.Driver {
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			if c.Database.Host == "" {
				errs = append(errs, "database: host must not be empty (or set database.dsn)")
			}
			if c.Database.Port <= 0 || c.Database.Port > 65535 {
				errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
			}
			if c.Database.Name == "" {
				errs = append(errs, "database: name must not be empty")
			}
		}
		if c.Database.PoolMaxConns < 1 {
			errs = append(errs, "database: pool_max_conns must be >= 1")
		}
		if c.Database.PoolMinConns < 0 || c.Database.PoolMinConns > c.Database.PoolMaxConns {
			errs = append(errs, "database: pool_min_conns must be between 0 and pool_max_conns")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			errs = append(errs, "database: sqlite_path must not be empty")
		}
	default:
		errs = append(errs, fmt.Sprintf("database: unknown driver %q (valid: postgres, sqlite)", c.Database.Driver))
	}

	if c.Collection.Interval.Duration <= 0 {
		errs = append(errs, "collection: interval must be > 0")
	}
	if c.Collection.MaxTraders < 1 {
		errs = append(errs, "collection: max_traders must be >= 1")
	}
	if c.Collection.BatchSize < 1 {
		errs = append(errs, "collection: batch_size must be >= 1")
	}
	if c.Collection.PositionSizeThreshold < 0 {
		errs = append(errs, "collection: position_size_threshold must be >= 0")
	}
	if c.Collection.TradesPageSize < 1 {
		errs = append(errs, "collection: trades_page_size must be >= 1")
	}
	if c.Collection.ActivityLimit < 1 {
		errs = append(errs, "collection: activity_limit must be >= 1")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive: bucket must not be empty")
		}
		if c.Archive.Region == "" {
			errs = append(errs, "archive: region must not be empty")
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RequestsPerSecond < 0 {
			errs = append(errs, "server: requests_per_second must be >= 0")
		}
		if c.Server.RequestsPerSecond > 0 && c.Server.Burst < 1 {
			errs = append(errs, "server: burst must be >= 1 when throttling is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const envPrefix = "POLYINSIDER_"

// Load merges the TOML file at path over Defaults and applies environment
// overrides. A missing file is not an error. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// .env is optional.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Polymarket.GammaHost, "POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.DataHost, "POLYMARKET_DATA_HOST")
	setStr(&cfg.Polymarket.APIKey, "POLYMARKET_API_KEY")
	setDuration(&cfg.Polymarket.Timeout, "POLYMARKET_TIMEOUT")
	setFloat64(&cfg.Polymarket.RequestsPerSecond, "POLYMARKET_REQUESTS_PER_SECOND")

	setStr(&cfg.Database.Driver, "DATABASE_DRIVER")
	setStr(&cfg.Database.DSN, "DATABASE_DSN")
	setStr(&cfg.Database.DSN, "DATABASE_URL") // alias
	setStr(&cfg.Database.Host, "DATABASE_HOST")
	setInt(&cfg.Database.Port, "DATABASE_PORT")
	setStr(&cfg.Database.Name, "DATABASE_NAME")
	setStr(&cfg.Database.User, "DATABASE_USER")
	setStr(&cfg.Database.Password, "DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "DATABASE_POOL_MIN_CONNS")
	setStr(&cfg.Database.SQLitePath, "DATABASE_SQLITE_PATH")
	setBool(&cfg.Database.RunMigrations, "DATABASE_RUN_MIGRATIONS")

	setDuration(&cfg.Collection.Interval, "COLLECTION_INTERVAL")
	setInt(&cfg.Collection.MaxTraders, "COLLECTION_MAX_TRADERS")
	setInt(&cfg.Collection.BatchSize, "COLLECTION_BATCH_SIZE")
	setFloat64(&cfg.Collection.PositionSizeThreshold, "COLLECTION_POSITION_SIZE_THRESHOLD")
	setInt(&cfg.Collection.TradesPageSize, "COLLECTION_TRADES_PAGE_SIZE")
	setInt(&cfg.Collection.ActivityLimit, "COLLECTION_ACTIVITY_LIMIT")
	setBool(&cfg.Collection.BackfillMarkets, "COLLECTION_BACKFILL_MARKETS")
	setBool(&cfg.Collection.ActiveOnly, "COLLECTION_ACTIVE_ONLY")
	setStr(&cfg.Collection.Watchlist, "COLLECTION_WATCHLIST")

	setBool(&cfg.Redis.Enabled, "REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "REDIS_KEY_PREFIX")
	setDuration(&cfg.Redis.CacheTTL, "REDIS_CACHE_TTL")

	setBool(&cfg.Archive.Enabled, "ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Endpoint, "ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.UseSSL, "ARCHIVE_USE_SSL")
	setBool(&cfg.Archive.ForcePathStyle, "ARCHIVE_FORCE_PATH_STYLE")
	setStr(&cfg.Archive.Prefix, "ARCHIVE_PREFIX")

	setBool(&cfg.Server.Enabled, "SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setStr(&cfg.Server.APIKey, "SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "SERVER_CORS_ORIGINS")
	setFloat64(&cfg.Server.RequestsPerSecond, "SERVER_REQUESTS_PER_SECOND")
	setInt(&cfg.Server.Burst, "SERVER_BURST")

	setStr(&cfg.LogLevel, "LOG_LEVEL")
	setStr(&cfg.LogFormat, "LOG_FORMAT")
	setStr(&cfg.Environment, "ENVIRONMENT")
}

// Typed env helpers. Each mutates dst only when the prefixed variable is
// set, non-empty and parses.

func lookup(key string) (string, bool) {
	v := os.Getenv(envPrefix + key)
	return v, v != ""
}

func setStr(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v, ok := lookup(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v, ok := lookup(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		*dst = cleaned
	}
}

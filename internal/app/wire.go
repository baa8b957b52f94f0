package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/polyinsider/internal/blob/s3"
	"github.com/alanyoungcy/polyinsider/internal/cache/redis"
	"github.com/alanyoungcy/polyinsider/internal/config"
	"github.com/alanyoungcy/polyinsider/internal/domain"
	"github.com/alanyoungcy/polyinsider/internal/pipeline"
	"github.com/alanyoungcy/polyinsider/internal/platform/polymarket"
	"github.com/alanyoungcy/polyinsider/internal/service"
	"github.com/alanyoungcy/polyinsider/internal/store/postgres"
	"github.com/alanyoungcy/polyinsider/internal/store/sqlite"
)

// Dependencies bundles everything the commands operate on. It is built by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Store domain.Store

	Gamma *polymarket.GammaClient
	Data  *polymarket.DataClient

	// Optional; nil when disabled.
	MarketCache domain.MarketCache
	Archiver    *s3blob.Archiver

	Markets   *pipeline.MarketReconciler
	Scraper   *pipeline.MarketScraper
	Collector *pipeline.TraderCollector

	TraderService *service.TraderService
	MarketService *service.MarketService
	StatusService *service.StatusService
}

// migrator is implemented by both store backends.
type migrator interface {
	RunMigrations(ctx context.Context) error
}

// Wire constructs every dependency from cfg. When migrate is true the
// embedded migrations are applied regardless of database.run_migrations.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{}

	// --- Entity store ---
	store, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeStore)
	if migrate || cfg.Database.RunMigrations {
		if err := store.(migrator).RunMigrations(ctx); err != nil {
			return fail(fmt.Errorf("wire: migrations: %w", err))
		}
	}
	deps.Store = store

	// --- Polymarket gateway ---
	deps.Gamma = polymarket.NewGammaClient(polymarket.ClientConfig{
		BaseURL:           cfg.Polymarket.GammaHost,
		APIKey:            cfg.Polymarket.APIKey,
		Timeout:           cfg.Polymarket.Timeout.Duration,
		RequestsPerSecond: cfg.Polymarket.RequestsPerSecond,
	})
	deps.Data = polymarket.NewDataClient(polymarket.ClientConfig{
		BaseURL:           cfg.Polymarket.DataHost,
		APIKey:            cfg.Polymarket.APIKey,
		Timeout:           cfg.Polymarket.Timeout.Duration,
		RequestsPerSecond: cfg.Polymarket.RequestsPerSecond,
	})

	// --- Redis market cache (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.MarketCache = redis.NewMarketCache(redisClient, cfg.Redis.CacheTTL.Duration)
	}

	// --- S3 snapshot archive (optional) ---
	var recorder *pipeline.SnapshotRecorder
	var snapshots service.SnapshotCatalog
	var archiveHealth service.HealthChecker
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client), cfg.Archive.Prefix, 0)
		recorder = pipeline.NewSnapshotRecorder(deps.Archiver, logger)
		snapshots = deps.Archiver
		archiveHealth = s3Client
	}

	// --- Reconciliation pipeline ---
	deps.Markets = pipeline.NewMarketReconciler(deps.MarketCache, logger)
	deps.Scraper = pipeline.NewMarketScraper(store, deps.Gamma, deps.Markets, cfg.Collection.BatchSize, logger)
	deps.Collector = pipeline.NewTraderCollector(store, deps.Data, deps.Gamma, deps.Markets, recorder,
		pipeline.TraderOptions{
			SizeThreshold:   cfg.Collection.PositionSizeThreshold,
			TradesPageSize:  cfg.Collection.TradesPageSize,
			ActivityLimit:   cfg.Collection.ActivityLimit,
			MaxTraders:      cfg.Collection.MaxTraders,
			BackfillMarkets: cfg.Collection.BackfillMarkets,
		}, logger)

	// --- Read-side services ---
	deps.TraderService = service.NewTraderService(store, snapshots)
	deps.MarketService = service.NewMarketService(store.Markets(), deps.MarketCache, logger)
	deps.StatusService = service.NewStatusService(store, archiveHealth)

	return deps, cleanup, nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (domain.Store, func(), error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: sqlite: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres", "":
		client, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.DSN,
			Host:     cfg.Host,
			Port:     cfg.Port,
			Database: cfg.Name,
			User:     cfg.User,
			Password: cfg.Password,
			SSLMode:  cfg.SSLMode,
			MaxConns: cfg.PoolMaxConns,
			MinConns: cfg.PoolMinConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		return &pgStore{Store: client.Store(), client: client}, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("wire: unknown database driver %q", cfg.Driver)
	}
}

// pgStore attaches the client's migration runner to the pool-backed store.
type pgStore struct {
	*postgres.Store
	client *postgres.Client
}

func (s *pgStore) RunMigrations(ctx context.Context) error {
	return s.client.RunMigrations(ctx)
}

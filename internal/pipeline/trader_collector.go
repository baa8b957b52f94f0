package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

const (
	DefaultTradesPageSize = 500
	DefaultActivityLimit  = 500
	DefaultMarketPageSize = 100
	DefaultMaxTraders     = 1000
	DefaultSizeThreshold  = 1.0
)

// TraderOptions tunes per-trader collection.
type TraderOptions struct {
	SizeThreshold   float64
	TradesPageSize  int
	ActivityLimit   int
	MaxTraders      int
	BackfillMarkets bool
}

func (o TraderOptions) withDefaults() TraderOptions {
	if o.SizeThreshold < 0 {
		o.SizeThreshold = 0
	}
	if o.TradesPageSize <= 0 {
		o.TradesPageSize = DefaultTradesPageSize
	}
	if o.ActivityLimit <= 0 {
		o.ActivityLimit = DefaultActivityLimit
	}
	if o.MaxTraders <= 0 {
		o.MaxTraders = DefaultMaxTraders
	}
	return o
}

// TraderCollector sequences one trader's reconciliation inside a single
// store transaction and isolates failures across a batch of addresses.
type TraderCollector struct {
	store    domain.Store
	traders  TraderFetcher
	markets  *MarketReconciler
	backfill *MarketBackfill
	archiver *SnapshotRecorder
	opts     TraderOptions
	logger   *slog.Logger
	now      func() time.Time
}

// NewTraderCollector creates a TraderCollector. archiver may be nil.
func NewTraderCollector(
	store domain.Store,
	traders TraderFetcher,
	marketFetcher MarketFetcher,
	markets *MarketReconciler,
	archiver *SnapshotRecorder,
	opts TraderOptions,
	logger *slog.Logger,
) *TraderCollector {
	return &TraderCollector{
		store:    store,
		traders:  traders,
		markets:  markets,
		backfill: NewMarketBackfill(marketFetcher, markets, logger),
		archiver: archiver,
		opts:     opts.withDefaults(),
		logger:   logger.With(slog.String("component", "trader_collector")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CollectTrader reconciles positions, trade stats and activities for
// address in one transaction, then optionally backfills markets in
// separate transactions. Any error before commit rolls back every write
// for the trader.
func (c *TraderCollector) CollectTrader(ctx context.Context, address string) (domain.Trader, error) {
	addr, err := domain.NormalizeAddress(address)
	if err != nil {
		return domain.Trader{}, err
	}

	runID := ulid.Make().String()
	logger := c.logger.With(slog.String("run_id", runID), slog.String("address", addr))
	logger.InfoContext(ctx, "collecting trader")

	fetcher := c.traders
	var snap *domain.TraderSnapshot
	if c.archiver != nil {
		snap = &domain.TraderSnapshot{RunID: runID, Address: addr, CollectedAt: c.now()}
		fetcher = c.archiver.Wrap(fetcher, snap)
	}

	positions := NewPositionReconciler(fetcher, c.opts.SizeThreshold, logger)
	positions.now = c.now
	stats := NewStatsCalculator(fetcher, c.opts.TradesPageSize, logger)
	ledger := NewActivityLedger(fetcher, c.opts.ActivityLimit, logger)
	ledger.now = c.now

	var trader domain.Trader
	err = c.store.InTx(ctx, func(tx domain.Store) error {
		t, err := c.loadOrCreate(ctx, tx, addr)
		if err != nil {
			return err
		}

		seen, err := positions.Reconcile(ctx, tx, t)
		if err != nil {
			return err
		}

		now := c.now()
		t.LastSyncedAt = &now
		t.UpdatedAt = now
		if err := stats.Recompute(ctx, tx, &t); err != nil {
			return err
		}

		if _, err := ledger.Append(ctx, tx, t, seen); err != nil {
			return err
		}
		trader = t
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "trader collection failed", slog.String("error", err.Error()))
		return domain.Trader{}, fmt.Errorf("collect trader %s: %w", addr, err)
	}

	if snap != nil {
		c.archiver.Store(ctx, *snap)
	}

	if c.opts.BackfillMarkets {
		n, err := c.backfill.Run(ctx, c.store, trader)
		if err != nil {
			logger.WarnContext(ctx, "market backfill failed", slog.String("error", err.Error()))
		} else {
			logger.InfoContext(ctx, "markets backfilled", slog.Int("count", n))
		}
	}

	logger.InfoContext(ctx, "trader collected",
		slog.Int("trades", trader.TotalTrades),
		slog.Int("markets_traded", trader.MarketsTraded),
	)
	return trader, nil
}

// CollectTraders runs CollectTrader for each distinct address, up to
// MaxTraders, and returns the number that succeeded. A failing address is
// logged and the batch continues.
func (c *TraderCollector) CollectTraders(ctx context.Context, addresses []string) int {
	seen := make(map[string]struct{}, len(addresses))
	collected, failed := 0, 0

	for _, raw := range addresses {
		if ctx.Err() != nil {
			break
		}
		addr, err := domain.NormalizeAddress(raw)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping address", slog.String("address", raw), slog.String("error", err.Error()))
			failed++
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		if len(seen) >= c.opts.MaxTraders {
			c.logger.WarnContext(ctx, "trader limit reached", slog.Int("max_traders", c.opts.MaxTraders))
			break
		}
		seen[addr] = struct{}{}

		if _, err := c.CollectTrader(ctx, addr); err != nil {
			failed++
			continue
		}
		collected++
	}

	c.logger.InfoContext(ctx, "trader batch complete",
		slog.Int("requested", len(addresses)),
		slog.Int("collected", collected),
		slog.Int("failed", failed),
	)
	return collected
}

// BackfillTrader runs only the market backfill step for a stored trader.
func (c *TraderCollector) BackfillTrader(ctx context.Context, address string) (int, error) {
	addr, err := domain.NormalizeAddress(address)
	if err != nil {
		return 0, err
	}
	trader, err := c.store.Traders().GetByAddress(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("load trader %s: %w", addr, err)
	}
	return c.backfill.Run(ctx, c.store, trader)
}

func (c *TraderCollector) loadOrCreate(ctx context.Context, store domain.Store, addr string) (domain.Trader, error) {
	t, err := store.Traders().GetByAddress(ctx, addr)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Trader{}, fmt.Errorf("load trader: %w", err)
	}

	t = domain.NewTrader(addr, c.now())
	if err := store.Traders().Create(ctx, &t); err != nil {
		return domain.Trader{}, fmt.Errorf("create trader: %w", err)
	}
	c.logger.InfoContext(ctx, "created trader", slog.String("address", addr))
	return t, nil
}

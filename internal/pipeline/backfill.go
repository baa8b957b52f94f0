package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/alanyoungcy/polyinsider/internal/domain"
	"github.com/alanyoungcy/polyinsider/internal/platform/polymarket"
)

// conditionIDPattern matches a 32-byte hex condition identifier.
var conditionIDPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// MarketBackfill fetches metadata for markets referenced by a trader's
// stored positions but missing from the market table.
type MarketBackfill struct {
	fetcher MarketFetcher
	markets *MarketReconciler
	logger  *slog.Logger
}

// NewMarketBackfill creates a MarketBackfill.
func NewMarketBackfill(fetcher MarketFetcher, markets *MarketReconciler, logger *slog.Logger) *MarketBackfill {
	return &MarketBackfill{
		fetcher: fetcher,
		markets: markets,
		logger:  logger.With(slog.String("component", "market_backfill")),
	}
}

// Run backfills every distinct market id on the trader's stored positions.
// Each market is fetched and upserted in its own transaction; per-market
// failures are logged and skipped. It returns the number of markets stored.
func (b *MarketBackfill) Run(ctx context.Context, store domain.Store, trader domain.Trader) (int, error) {
	positions, err := store.Positions().ListByTrader(ctx, trader.ID)
	if err != nil {
		return 0, fmt.Errorf("list positions: %w", err)
	}
	ids := make(MarketSet)
	for _, p := range positions {
		ids.Add(p.MarketID)
	}

	stored, skipped := 0, 0
	for _, id := range ids.Sorted() {
		if err := ctx.Err(); err != nil {
			return stored, fmt.Errorf("backfill cancelled: %w", err)
		}

		exists, err := store.Markets().Exists(ctx, id)
		if err != nil {
			b.logger.WarnContext(ctx, "market lookup failed",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		if exists {
			skipped++
			continue
		}

		if err := b.backfillOne(ctx, store, id); err != nil {
			level := slog.LevelWarn
			if errors.Is(err, domain.ErrIdentifierMismatch) {
				level = slog.LevelInfo
			}
			b.logger.Log(ctx, level, "market backfill skipped",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		stored++
	}

	b.logger.InfoContext(ctx, "market backfill complete",
		slog.String("address", trader.Address),
		slog.Int("candidates", len(ids)),
		slog.Int("already_present", skipped),
		slog.Int("stored", stored),
	)
	return stored, nil
}

func (b *MarketBackfill) backfillOne(ctx context.Context, store domain.Store, id string) error {
	payload, err := b.fetcher.GetMarket(ctx, id)
	if err != nil {
		if isIdentifierMismatch(id, err) {
			return fmt.Errorf("%w: %s: %w", domain.ErrIdentifierMismatch, id, err)
		}
		return fmt.Errorf("fetch market: %w", err)
	}
	if !payload.ID.Present() {
		payload.ID = polymarket.Some(id)
	}

	return store.InTx(ctx, func(tx domain.Store) error {
		m, err := b.markets.Upsert(ctx, tx, payload)
		if err != nil {
			return err
		}
		return refreshMarketTracking(ctx, tx, m, id)
	})
}

// refreshMarketTracking recomputes position and trader counts for m from
// the positions keyed by positionMarketID.
func refreshMarketTracking(ctx context.Context, store domain.Store, m domain.Market, positionMarketID string) error {
	positions, traders, err := store.Positions().CountByMarket(ctx, positionMarketID)
	if err != nil {
		return fmt.Errorf("count positions for %s: %w", positionMarketID, err)
	}
	if positions == m.TotalPositions && traders == m.UniqueTraders {
		return nil
	}
	m.TotalPositions = positions
	m.UniqueTraders = traders
	if err := store.Markets().Update(ctx, m); err != nil {
		return fmt.Errorf("update market tracking %s: %w", m.MarketID, err)
	}
	return nil
}

// isIdentifierMismatch reports whether a detail fetch for a condition id
// was rejected with a client error.
func isIdentifierMismatch(id string, err error) bool {
	if !conditionIDPattern.MatchString(id) {
		return false
	}
	var apiErr *polymarket.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusBadRequest && apiErr.StatusCode < http.StatusInternalServerError
	}
	return errors.Is(err, domain.ErrNotFound)
}

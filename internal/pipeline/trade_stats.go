package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

// WinRate returns the percentage of positions whose realized plus
// unrealized pnl is positive, or nil for an empty set.
func WinRate(positions []domain.Position) *float64 {
	if len(positions) == 0 {
		return nil
	}
	wins := 0
	for _, p := range positions {
		if p.Profitable() {
			wins++
		}
	}
	rate := 100 * float64(wins) / float64(len(positions))
	return &rate
}

// AvgPositionSize returns the mean initial value across positions, or nil
// for an empty set.
func AvgPositionSize(positions []domain.Position) *float64 {
	if len(positions) == 0 {
		return nil
	}
	sum := 0.0
	for _, p := range positions {
		sum += p.InitialValue
	}
	avg := sum / float64(len(positions))
	return &avg
}

// tradeTotals accumulates aggregates over a trade history.
type tradeTotals struct {
	volume  float64
	count   int
	markets MarketSet
	first   int64
	last    int64
}

func (t *tradeTotals) apply(trader *domain.Trader) {
	trader.TotalVolume = t.volume
	trader.TotalTrades = t.count
	trader.MarketsTraded = len(t.markets)
	trader.FirstTradeAt = unixPtr(t.first)
	trader.LastTradeAt = unixPtr(t.last)
}

func unixPtr(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

// StatsCalculator runs the trades-and-stats pass for one trader.
type StatsCalculator struct {
	fetcher  TraderFetcher
	pageSize int
	logger   *slog.Logger
}

// NewStatsCalculator creates a StatsCalculator that pages trades in
// pageSize chunks.
func NewStatsCalculator(fetcher TraderFetcher, pageSize int, logger *slog.Logger) *StatsCalculator {
	if pageSize <= 0 {
		pageSize = DefaultTradesPageSize
	}
	return &StatsCalculator{
		fetcher:  fetcher,
		pageSize: pageSize,
		logger:   logger.With(slog.String("component", "stats_calculator")),
	}
}

// Recompute rebuilds trade aggregates from the full trade history, then
// derives win rate, average position size and activity status from the
// persisted positions, and saves the trader. When the trade history is not
// found the trade aggregates are left untouched.
func (c *StatsCalculator) Recompute(ctx context.Context, store domain.Store, trader *domain.Trader) error {
	totals, found, err := c.fetchTradeTotals(ctx, trader.Address)
	if err != nil {
		return err
	}
	if found {
		totals.apply(trader)
	}

	positions, err := store.Positions().ListByTrader(ctx, trader.ID)
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}
	trader.WinRate = WinRate(positions)
	trader.AvgPositionSize = AvgPositionSize(positions)
	trader.IsActive = hasOpenPosition(positions)

	if err := store.Traders().Update(ctx, *trader); err != nil {
		return fmt.Errorf("update trader stats: %w", err)
	}

	c.logger.InfoContext(ctx, "trader stats recomputed",
		slog.String("address", trader.Address),
		slog.Bool("trades_found", found),
		slog.Int("trades", trader.TotalTrades),
		slog.Float64("volume", trader.TotalVolume),
		slog.Int("positions", len(positions)),
	)
	return nil
}

// fetchTradeTotals pages through the trade history until the first short
// page. found is false when the first page reports not-found.
func (c *StatsCalculator) fetchTradeTotals(ctx context.Context, address string) (tradeTotals, bool, error) {
	totals := tradeTotals{markets: make(MarketSet)}

	for offset := 0; ; {
		res := classify(c.fetcher.GetTrades(ctx, address, c.pageSize, offset))
		if res.status == fetchFailed {
			return tradeTotals{}, false, fmt.Errorf("fetch trades at offset %d: %w", offset, res.err)
		}
		if res.notFound && offset == 0 {
			return tradeTotals{}, false, nil
		}

		for _, t := range res.items {
			cash := float64(t.USDCSize.Or(t.Size.Or(0) * t.Price.Or(0)))
			totals.volume += math.Abs(cash)
			totals.count++
			if id := strings.TrimSpace(t.ConditionID.Or("")); id != "" {
				totals.markets.Add(id)
			}
			ts := domain.NormalizeUnixSeconds(int64(t.Timestamp.Or(0)))
			if ts <= 0 {
				continue
			}
			if totals.first == 0 || ts < totals.first {
				totals.first = ts
			}
			if ts > totals.last {
				totals.last = ts
			}
		}

		if len(res.items) < c.pageSize {
			break
		}
		offset += len(res.items)
	}
	return totals, true, nil
}

func hasOpenPosition(positions []domain.Position) bool {
	for _, p := range positions {
		if p.Size > 0 {
			return true
		}
	}
	return false
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Watchlist supplies the trader addresses to collect on each cycle.
type Watchlist interface {
	Addresses(ctx context.Context) ([]string, error)
}

// Orchestrator runs the periodic collection cycle. Each cycle scrapes
// markets first and then collects the watchlist one address at a time, so
// market and trader writes never run concurrently. Cycles never overlap:
// a cycle that outlasts the interval delays the next one.
type Orchestrator struct {
	marketScraper   *MarketScraper
	traderCollector *TraderCollector
	watchlist       Watchlist
	interval        time.Duration
	activeOnly      bool
	logger          *slog.Logger
}

// NewOrchestrator creates a new Orchestrator. marketScraper or watchlist
// may be nil to skip that stage of the cycle.
func NewOrchestrator(
	marketScraper *MarketScraper,
	traderCollector *TraderCollector,
	watchlist Watchlist,
	interval time.Duration,
	activeOnly bool,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		marketScraper:   marketScraper,
		traderCollector: traderCollector,
		watchlist:       watchlist,
		interval:        interval,
		activeOnly:      activeOnly,
		logger:          logger.With(slog.String("component", "orchestrator")),
	}
}

// Run executes a cycle immediately and then on every tick until ctx is
// cancelled. Stage failures are logged and retried on the next tick.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("collection orchestrator starting", slog.Duration("interval", o.interval))

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		o.RunCycle(ctx)

		select {
		case <-ctx.Done():
			o.logger.Info("collection orchestrator stopped cleanly")
			return nil
		case <-ticker.C:
		}
	}
}

// RunCycle runs one market scrape followed by one pass over the watchlist.
func (o *Orchestrator) RunCycle(ctx context.Context) {
	if o.marketScraper != nil {
		if _, err := o.marketScraper.Run(ctx, o.activeOnly); err != nil && ctx.Err() == nil {
			o.logger.ErrorContext(ctx, "market scrape failed", slog.String("error", err.Error()))
		}
	}
	if ctx.Err() != nil || o.watchlist == nil || o.traderCollector == nil {
		return
	}
	n, err := o.RunTraderCycle(ctx)
	if err != nil {
		o.logger.ErrorContext(ctx, "trader cycle failed", slog.String("error", err.Error()))
		return
	}
	o.logger.InfoContext(ctx, "trader cycle complete", slog.Int("collected", n))
}

// RunTraderCycle collects every address on the watchlist once.
func (o *Orchestrator) RunTraderCycle(ctx context.Context) (int, error) {
	addresses, err := o.watchlist.Addresses(ctx)
	if err != nil {
		return 0, fmt.Errorf("load watchlist: %w", err)
	}
	return o.traderCollector.CollectTraders(ctx, addresses), nil
}

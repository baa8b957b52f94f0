package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

// MarketScraper pulls market pages from the Gamma API and upserts each
// market through the MarketReconciler.
type MarketScraper struct {
	store    domain.Store
	fetcher  MarketFetcher
	markets  *MarketReconciler
	pageSize int
	logger   *slog.Logger
}

// NewMarketScraper creates a new MarketScraper.
func NewMarketScraper(store domain.Store, fetcher MarketFetcher, markets *MarketReconciler, pageSize int, logger *slog.Logger) *MarketScraper {
	if pageSize <= 0 {
		pageSize = DefaultMarketPageSize
	}
	return &MarketScraper{
		store:    store,
		fetcher:  fetcher,
		markets:  markets,
		pageSize: pageSize,
		logger:   logger.With(slog.String("component", "market_scraper")),
	}
}

// CollectMarkets fetches one page of markets and upserts each in its own
// transaction. A market that fails to store is logged and skipped. It
// returns the number of markets stored and the page length.
func (s *MarketScraper) CollectMarkets(ctx context.Context, limit, offset int, activeOnly bool) (stored, fetched int, err error) {
	var active *bool
	if activeOnly {
		active = &activeOnly
	}

	payloads, err := s.fetcher.GetMarkets(ctx, limit, offset, active)
	if err != nil {
		return 0, 0, fmt.Errorf("fetching markets at offset %d: %w", offset, err)
	}
	if len(payloads) == 0 {
		s.logger.WarnContext(ctx, "no markets returned", slog.Int("offset", offset))
		return 0, 0, nil
	}

	for _, p := range payloads {
		err := s.store.InTx(ctx, func(tx domain.Store) error {
			_, err := s.markets.Upsert(ctx, tx, p)
			return err
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to store market",
				slog.String("market_id", p.ID.Or("")),
				slog.String("error", err.Error()),
			)
			continue
		}
		stored++
	}

	s.logger.InfoContext(ctx, "collected market page",
		slog.Int("offset", offset),
		slog.Int("fetched", len(payloads)),
		slog.Int("stored", stored),
	)
	return stored, len(payloads), nil
}

// Run paginates through all markets until the first short page and returns
// the total stored.
func (s *MarketScraper) Run(ctx context.Context, activeOnly bool) (int, error) {
	offset := 0
	total := 0

	for {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("market scraper context cancelled: %w", err)
		}

		stored, fetched, err := s.CollectMarkets(ctx, s.pageSize, offset, activeOnly)
		if err != nil {
			return total, err
		}
		total += stored

		if fetched < s.pageSize {
			break
		}
		offset += fetched
	}

	s.logger.InfoContext(ctx, "market scrape complete", slog.Int("total_stored", total))
	return total, nil
}

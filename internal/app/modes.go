package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyinsider/internal/domain"
	"github.com/alanyoungcy/polyinsider/internal/pipeline"
	"github.com/alanyoungcy/polyinsider/internal/server"
	"github.com/alanyoungcy/polyinsider/internal/server/handler"
	"github.com/alanyoungcy/polyinsider/internal/service"
	"github.com/alanyoungcy/polyinsider/internal/watchlist"
)

var errNotOpen = errors.New("app: dependencies not wired")

// StatusReport is what the status command prints.
type StatusReport struct {
	Counts     service.Status
	TopTraders []domain.Trader
}

// Status checks store connectivity and returns row counts plus the traders
// with the highest volume.
func (a *App) Status(ctx context.Context, top int) (StatusReport, error) {
	if a.deps == nil {
		return StatusReport{}, errNotOpen
	}
	if err := a.deps.StatusService.Ping(ctx); err != nil {
		return StatusReport{}, fmt.Errorf("app: store unreachable: %w", err)
	}
	counts, err := a.deps.StatusService.Status(ctx)
	if err != nil {
		return StatusReport{}, fmt.Errorf("app: status: %w", err)
	}
	traders, err := a.deps.TraderService.ListTraders(ctx, domain.ListOpts{Limit: top})
	if err != nil {
		return StatusReport{}, fmt.Errorf("app: top traders: %w", err)
	}
	return StatusReport{Counts: counts, TopTraders: traders}, nil
}

// CollectMarkets stores one page of markets, or every page when all is set.
func (a *App) CollectMarkets(ctx context.Context, limit, offset int, activeOnly, all bool) (int, error) {
	if a.deps == nil {
		return 0, errNotOpen
	}
	if all {
		return a.deps.Scraper.Run(ctx, activeOnly)
	}
	stored, _, err := a.deps.Scraper.CollectMarkets(ctx, limit, offset, activeOnly)
	return stored, err
}

// CollectTraders reconciles each address in turn and returns how many
// succeeded. Failures are logged per address.
func (a *App) CollectTraders(ctx context.Context, addresses []string) (int, error) {
	if a.deps == nil {
		return 0, errNotOpen
	}
	return a.deps.Collector.CollectTraders(ctx, addresses), nil
}

// Backfill fetches missing market metadata for each stored trader and
// returns the number of markets stored.
func (a *App) Backfill(ctx context.Context, addresses []string) (int, error) {
	if a.deps == nil {
		return 0, errNotOpen
	}
	total := 0
	for _, addr := range addresses {
		n, err := a.deps.Collector.BackfillTrader(ctx, addr)
		if err != nil {
			a.logger.ErrorContext(ctx, "backfill failed",
				slog.String("address", addr),
				slog.String("error", err.Error()),
			)
			continue
		}
		total += n
	}
	return total, nil
}

// Serve runs the collection loops and, when enabled, the HTTP API until ctx
// is cancelled.
func (a *App) Serve(ctx context.Context) error {
	if a.deps == nil {
		return errNotOpen
	}
	a.logger.InfoContext(ctx, "starting serve mode",
		slog.Bool("api", a.cfg.Server.Enabled),
		slog.String("watchlist", a.cfg.Collection.Watchlist),
	)

	var wl pipeline.Watchlist
	if a.cfg.Collection.Watchlist != "" {
		wl = watchlist.NewFileWatchlist(a.cfg.Collection.Watchlist)
	} else {
		a.logger.WarnContext(ctx, "no watchlist configured, trader loop disabled")
	}

	orch := pipeline.NewOrchestrator(
		a.deps.Scraper,
		a.deps.Collector,
		wl,
		a.cfg.Collection.Interval.Duration,
		a.cfg.Collection.ActiveOnly,
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return orch.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		srv := a.newServer()
		g.Go(func() error {
			return srv.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func (a *App) newServer() *server.Server {
	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.deps.StatusService, a.logger),
		Traders: handler.NewTraderHandler(a.deps.TraderService, a.logger),
		Markets: handler.NewMarketHandler(a.deps.MarketService, a.logger),
	}
	return server.NewServer(server.Config{
		Port:              a.cfg.Server.Port,
		CORSOrigins:       a.cfg.Server.CORSOrigins,
		APIKey:            a.cfg.Server.APIKey,
		RequestsPerSecond: a.cfg.Server.RequestsPerSecond,
		Burst:             a.cfg.Server.Burst,
	}, handlers, a.logger)
}

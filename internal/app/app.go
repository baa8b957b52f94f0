// Package app wires the polyinsider dependencies together and implements
// the operations behind each command.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polyinsider/internal/config"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	deps    *Dependencies
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Open wires every dependency. migrate forces the embedded migrations to
// run even when database.run_migrations is off.
func (a *App) Open(ctx context.Context, migrate bool) error {
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger, migrate)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.deps = deps
	a.closers = append(a.closers, cleanup)

	a.logger.DebugContext(ctx, "dependencies wired",
		slog.String("database", a.cfg.Database.Driver),
		slog.Bool("redis", a.deps.MarketCache != nil),
		slog.Bool("archive", a.deps.Archiver != nil),
	)
	return nil
}

// Deps returns the wired dependencies, or nil before Open.
func (a *App) Deps() *Dependencies {
	return a.deps
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

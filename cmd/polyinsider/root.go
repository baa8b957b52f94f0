package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/polyinsider/internal/app"
	"github.com/alanyoungcy/polyinsider/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "polyinsider",
	Short: "Collect and reconcile Polymarket trader activity",
	Long: `polyinsider pulls markets, positions, trades and activity from the public
Polymarket APIs and reconciles them into a deduplicated store of traders,
markets, positions and an append-only activity ledger.

Examples:
  polyinsider init
  polyinsider collect markets --all --active-only
  polyinsider collect traders 0x56687bf447db6ffa42ffe2204a05edaa20f55839
  polyinsider serve`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to configuration file")
}

// openApp loads and validates the configuration, installs the default
// logger and wires the application.
func openApp(ctx context.Context, migrate bool) (*app.App, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	a := app.New(cfg, logger)
	if err := a.Open(ctx, migrate); err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, cfg, nil
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

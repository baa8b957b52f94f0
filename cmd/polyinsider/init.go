package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/alanyoungcy/polyinsider/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Connect to the store and apply migrations",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	a, cfg, err := openApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	printf(cmd, "database initialized\n")
	printConfig(cmd.OutOrStdout(), config.RedactedConfig(cfg))
	return nil
}

func printConfig(w io.Writer, cfg config.Config) {
	table := tablewriter.NewWriter(w)
	table.Header("Setting", "Value")

	rows := [][2]string{
		{"environment", cfg.Environment},
		{"database.driver", cfg.Database.Driver},
		{"database.dsn", cfg.Database.DSN},
		{"database.host", fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)},
		{"database.sqlite_path", cfg.Database.SQLitePath},
		{"polymarket.gamma_host", cfg.Polymarket.GammaHost},
		{"polymarket.data_host", cfg.Polymarket.DataHost},
		{"polymarket.api_key", cfg.Polymarket.APIKey},
		{"collection.interval", cfg.Collection.Interval.String()},
		{"collection.max_traders", fmt.Sprint(cfg.Collection.MaxTraders)},
		{"collection.batch_size", fmt.Sprint(cfg.Collection.BatchSize)},
		{"collection.watchlist", cfg.Collection.Watchlist},
		{"redis.enabled", fmt.Sprint(cfg.Redis.Enabled)},
		{"archive.enabled", fmt.Sprint(cfg.Archive.Enabled)},
		{"server.enabled", fmt.Sprint(cfg.Server.Enabled)},
		{"server.cors_origins", strings.Join(cfg.Server.CORSOrigins, ",")},
	}
	for _, r := range rows {
		table.Append(r[0], r[1])
	}
	table.Render()
}

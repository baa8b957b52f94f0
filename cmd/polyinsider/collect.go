package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/polyinsider/internal/watchlist"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one collection pass",
	Long: `Run one collection pass against the Polymarket APIs.

Subcommands:
  markets   - store a page of markets, or every page with --all
  traders   - reconcile positions, trade stats and activity per trader
  backfill  - fetch metadata for markets referenced by stored positions`,
}

var collectMarketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "Store market metadata",
	Args:  cobra.NoArgs,
	RunE:  runCollectMarkets,
}

var collectTradersCmd = &cobra.Command{
	Use:   "traders [address...]",
	Short: "Collect one or more traders",
	RunE:  runCollectTraders,
}

var collectBackfillCmd = &cobra.Command{
	Use:   "backfill <address...>",
	Short: "Backfill missing markets for stored traders",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCollectBackfill,
}

var (
	marketsLimit      int
	marketsOffset     int
	marketsActiveOnly bool
	marketsAll        bool
	tradersFile       string
)

var errNoAddresses = errors.New("no trader addresses given")

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.AddCommand(collectMarketsCmd)
	collectCmd.AddCommand(collectTradersCmd)
	collectCmd.AddCommand(collectBackfillCmd)

	collectMarketsCmd.Flags().IntVar(&marketsLimit, "limit", 100, "markets per page")
	collectMarketsCmd.Flags().IntVar(&marketsOffset, "offset", 0, "page offset")
	collectMarketsCmd.Flags().BoolVar(&marketsActiveOnly, "active-only", false, "only active markets")
	collectMarketsCmd.Flags().BoolVar(&marketsAll, "all", false, "page through every market")

	collectTradersCmd.Flags().StringVarP(&tradersFile, "file", "f", "", "YAML watchlist of trader addresses")
}

func runCollectMarkets(cmd *cobra.Command, _ []string) error {
	a, _, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	stored, err := a.CollectMarkets(cmd.Context(), marketsLimit, marketsOffset, marketsActiveOnly, marketsAll)
	if err != nil {
		return err
	}
	printf(cmd, "stored %d markets\n", stored)
	return nil
}

func runCollectTraders(cmd *cobra.Command, args []string) error {
	addresses, err := traderAddresses(args, tradersFile)
	if err != nil {
		return err
	}

	a, _, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.CollectTraders(cmd.Context(), addresses)
	if err != nil {
		return err
	}
	printf(cmd, "collected %d of %d traders\n", n, len(addresses))
	return nil
}

func runCollectBackfill(cmd *cobra.Command, args []string) error {
	a, _, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.Backfill(cmd.Context(), args)
	if err != nil {
		return err
	}
	printf(cmd, "backfilled %d markets\n", n)
	return nil
}

// traderAddresses merges positional addresses with those from the
// watchlist file.
func traderAddresses(args []string, file string) ([]string, error) {
	addresses := append([]string(nil), args...)
	if file != "" {
		wl, err := watchlist.Load(file)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, wl.Addresses()...)
	}
	if len(addresses) == 0 {
		return nil, errNoAddresses
	}
	return addresses, nil
}

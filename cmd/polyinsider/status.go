package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/alanyoungcy/polyinsider/internal/app"
)

var statusTop int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store row counts and the top traders by volume",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().IntVar(&statusTop, "top", 10, "number of traders to list")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, _, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Status(cmd.Context(), statusTop)
	if err != nil {
		return err
	}
	printStatus(cmd.OutOrStdout(), report)
	return nil
}

func printStatus(w io.Writer, report app.StatusReport) {
	counts := tablewriter.NewWriter(w)
	counts.Header("Entity", "Rows")
	counts.Append("traders", fmt.Sprint(report.Counts.Traders))
	counts.Append("markets", fmt.Sprint(report.Counts.Markets))
	counts.Append("positions", fmt.Sprint(report.Counts.Positions))
	counts.Append("activities", fmt.Sprint(report.Counts.Activities))
	counts.Render()

	if len(report.TopTraders) == 0 {
		fmt.Fprintln(w, "no traders collected yet")
		return
	}

	traders := tablewriter.NewWriter(w)
	traders.Header("#", "Address", "Volume", "Trades", "Markets", "Win rate", "Avg size", "Active")
	for i, t := range report.TopTraders {
		traders.Append(
			fmt.Sprint(i+1),
			t.Address,
			fmt.Sprintf("%.2f", t.TotalVolume),
			fmt.Sprint(t.TotalTrades),
			fmt.Sprint(t.MarketsTraded),
			percent(t.WinRate),
			optFloat(t.AvgPositionSize),
			fmt.Sprint(t.IsActive),
		)
	}
	traders.Render()
}

func percent(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", *v)
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

package cli

import (
	"github.com/spf13/cobra"

	"dip-trigger/internal/app"
)

var (
	simulateSymbol string
	simulateBase   float64
	simulateLatest float64
	simulateFormat string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Evaluate a synthetic flat history ending at a given close",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Simulate(cmd.Context(), app.SimulateOptions{
			Symbol: simulateSymbol,
			Base:   simulateBase,
			Latest: simulateLatest,
		}, simulateFormat)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSymbol, "symbol", "SIM", "Symbol label for the synthetic history")
	simulateCmd.Flags().Float64Var(&simulateBase, "base", 0, "Close of every day before the latest")
	simulateCmd.Flags().Float64Var(&simulateLatest, "latest", 0, "Latest close")
	simulateCmd.Flags().StringVar(&simulateFormat, "format", app.FormatTable, "Output format: table or json")
}

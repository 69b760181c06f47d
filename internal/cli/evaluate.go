package cli

import (
	"github.com/spf13/cobra"

	"dip-trigger/internal/app"
)

var (
	evaluateFormat string
	evaluateWindow int
	evaluateMild   float64
	evaluateStrong float64
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [symbols...]",
	Short: "Evaluate symbols once and print the signals",
	Long: "Fetch daily closes, compare the latest close with its moving average and print one\n" +
		"signal per symbol. Without arguments the configured symbols are evaluated.",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.EvaluateOptions{
			Symbols: args,
			Format:  evaluateFormat,
		}
		flags := cmd.Flags()
		if flags.Changed("window") {
			opts.Window = &evaluateWindow
		}
		if flags.Changed("mild") {
			opts.MildThreshold = &evaluateMild
		}
		if flags.Changed("strong") {
			opts.StrongThreshold = &evaluateStrong
		}
		return getApp().Evaluate(cmd.Context(), opts)
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateFormat, "format", app.FormatTable, "Output format: table or json")
	evaluateCmd.Flags().IntVar(&evaluateWindow, "window", 0, "Moving average window in trading days (defaults to config)")
	evaluateCmd.Flags().Float64Var(&evaluateMild, "mild", 0, "DIP threshold in percent below the average (defaults to config)")
	evaluateCmd.Flags().Float64Var(&evaluateStrong, "strong", 0, "STRONG_DIP threshold in percent below the average (defaults to config)")
}

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"dip-trigger/internal/config"
	"dip-trigger/internal/trigger"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// Evaluate runs one evaluation and writes it to a.Out.
func (a *App) Evaluate(ctx context.Context, opts EvaluateOptions) error {
	format := strings.ToLower(opts.Format)
	if format == "" {
		format = FormatTable
	}
	if format != FormatTable && format != FormatJSON {
		return fmt.Errorf("unknown format %q (want table or json)", opts.Format)
	}

	params, err := resolveParams(a.Config.Trigger, opts)
	if err != nil {
		return err
	}

	var symbols []trigger.Symbol
	if len(opts.Symbols) > 0 {
		if symbols, err = trigger.ParseSymbols(opts.Symbols); err != nil {
			return err
		}
	}

	svc, closer, err := a.newService(ctx, params.Window)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}

	batch, err := svc.EvaluateWith(ctx, symbols, params)
	if err != nil {
		return err
	}

	if format == FormatJSON {
		return renderJSON(a.Out, batch)
	}
	return renderTable(a.Out, batch, params, a.Config.Trigger.LabelMap(), a.Config.Allocation)
}

func resolveParams(cfg config.TriggerConfig, opts EvaluateOptions) (trigger.Params, error) {
	if opts.Window != nil {
		cfg.Window = *opts.Window
	}
	if opts.MildThreshold != nil {
		cfg.MildThreshold = *opts.MildThreshold
	}
	if opts.StrongThreshold != nil {
		cfg.StrongThreshold = *opts.StrongThreshold
	}
	return cfg.Params()
}

func renderJSON(w io.Writer, batch trigger.BatchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(batch)
}

func renderTable(w io.Writer, batch trigger.BatchResult, params trigger.Params, labels map[trigger.Symbol]string, alloc config.AllocationConfig) error {
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Symbol\tName\tAs Of\tPrice\t%d DMA\tDeviation%%\tSignal\tDeploy\n", params.Window)

	for _, r := range batch.Results {
		if !r.OK() {
			fmt.Fprintf(writer, "%s\t%s\t-\t-\t-\t-\t%s\t%s\n",
				r.Symbol, label(labels, r.Symbol), r.Error, formatDecimal(deployAmount(alloc, r), 2))
			continue
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Symbol,
			label(labels, r.Symbol),
			r.AsOfDate.Format("2006-01-02"),
			formatDecimal(r.LatestPrice, 2),
			formatDecimal(r.MovingAverage, 2),
			formatDecimal(r.DeviationPct, 2),
			r.Signal,
			formatDecimal(deployAmount(alloc, r), 2),
		)
	}

	return writer.Flush()
}

func label(labels map[trigger.Symbol]string, sym trigger.Symbol) string {
	if name, ok := labels[sym]; ok {
		return name
	}
	return "-"
}

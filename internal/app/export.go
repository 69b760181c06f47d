package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"dip-trigger/internal/trigger"
)

// exportRow is one day of a symbol's history with its rolling average.
type exportRow struct {
	Date      time.Time
	Close     decimal.Decimal
	SMA       decimal.NullDecimal
	Deviation decimal.NullDecimal
}

// Export renders one symbol's history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	symbol, err := trigger.ParseSymbol(opts.Symbol)
	if err != nil {
		return err
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	svc, closer, err := a.newService(ctx, a.Config.Trigger.Window)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}

	window := svc.Params().Window
	series, err := svc.Series(ctx, symbol, window)
	if err != nil {
		return err
	}

	rows := buildRows(series, window)
	downsampled := downsample(rows, opts.MaxPoints)
	a.Logger.Info().
		Str("symbol", symbol.String()).
		Int("total", len(rows)).
		Int("exported", len(downsampled)).
		Msg("exporting history")

	if opts.CSVPath != "" {
		if err := writeRowsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeRowsPNG(opts.PNGPath, symbol, window, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func buildRows(series trigger.PriceSeries, window int) []exportRow {
	averages := trigger.MovingAverages(series, window)
	hundred := decimal.NewFromInt(100)

	rows := make([]exportRow, len(series.Points))
	for i, p := range series.Points {
		row := exportRow{Date: p.Date, Close: p.Close, SMA: averages[i]}
		if row.SMA.Valid && row.SMA.Decimal.IsPositive() {
			dev := p.Close.Sub(row.SMA.Decimal).Div(row.SMA.Decimal).Mul(hundred)
			row.Deviation = decimal.NewNullDecimal(dev)
		}
		rows[i] = row
	}
	return rows
}

// downsample picks max evenly spaced items, always keeping both endpoints.
func downsample[T any](items []T, max int) []T {
	if max <= 1 || len(items) <= max {
		return items
	}

	result := make([]T, 0, max)
	step := float64(len(items)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(items) {
			idx = len(items) - 1
		}
		result = append(result, items[idx])
	}
	return result
}

func writeRowsCSV(path string, rows []exportRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write([]string{"date", "close", "sma", "deviation_pct"}); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{
			row.Date.Format("2006-01-02"),
			row.Close.String(),
			nullString(row.SMA, 4),
			nullString(row.Deviation, 4),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func nullString(d decimal.NullDecimal, places int32) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.Round(places).String()
}

func writeRowsPNG(path string, symbol trigger.Symbol, window int, rows []exportRow) error {
	if len(rows) < 2 {
		return errors.New("need at least two points to render a chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(rows))
	closes := make([]float64, len(rows))
	var smaX, devX []time.Time
	var sma, deviation []float64

	for i, row := range rows {
		x[i] = row.Date
		closes[i] = row.Close.InexactFloat64()
		if row.SMA.Valid {
			smaX = append(smaX, row.Date)
			sma = append(sma, row.SMA.Decimal.InexactFloat64())
		}
		if row.Deviation.Valid {
			devX = append(devX, row.Date)
			deviation = append(deviation, row.Deviation.Decimal.InexactFloat64())
		}
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}

	series := []chart.Series{
		chart.TimeSeries{
			Name:    symbol.String(),
			XValues: x,
			YValues: closes,
		},
	}
	// go-chart cannot range a single-point series.
	if len(sma) > 1 {
		series = append(series,
			chart.TimeSeries{
				Name:    "SMA",
				XValues: smaX,
				YValues: sma,
			},
			chart.TimeSeries{
				Name:    "Deviation %",
				XValues: devX,
				YValues: deviation,
				YAxis:   chart.YAxisSecondary,
			},
		)
	}

	graph := chart.Chart{
		Title:  symbol.String(),
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Close",
			ValueFormatter: priceFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Deviation from " + smaLabel(window) + " (%)",
			ValueFormatter: priceFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func smaLabel(window int) string {
	return fmt.Sprintf("%d-day SMA", window)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

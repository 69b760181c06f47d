package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"dip-trigger/internal/fetcher"
	"dip-trigger/internal/trigger"
)

// Simulate evaluates a synthetic history: window-1 daily closes at Base
// followed by a latest close at Latest. No provider is contacted.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions, format string) error {
	if !positivePrice(opts.Base) || !positivePrice(opts.Latest) {
		return fmt.Errorf("base and latest prices must be positive and finite, got base=%v latest=%v", opts.Base, opts.Latest)
	}
	symbol, err := trigger.ParseSymbol(opts.Symbol)
	if err != nil {
		return err
	}

	params, err := a.Config.Trigger.Params()
	if err != nil {
		return err
	}

	static := &staticHistory{
		points: syntheticHistory(time.Now().UTC(), params.Window,
			decimal.NewFromFloat(opts.Base), decimal.NewFromFloat(opts.Latest)),
	}

	sim := *a
	sim.provider = static
	return sim.Evaluate(ctx, EvaluateOptions{Symbols: []string{symbol.String()}, Format: format})
}

func positivePrice(f float64) bool {
	return f > 0 && !math.IsInf(f, 0)
}

func syntheticHistory(end time.Time, window int, base, latest decimal.Decimal) []trigger.RawPoint {
	points := make([]trigger.RawPoint, 0, window)
	start := trigger.CalendarDate(end).AddDate(0, 0, -(window - 1))
	for i := 0; i < window-1; i++ {
		points = append(points, trigger.NewRawPoint(start.AddDate(0, 0, i), base))
	}
	return append(points, trigger.NewRawPoint(start.AddDate(0, 0, window-1), latest))
}

type staticHistory struct {
	points []trigger.RawPoint
}

func (s *staticHistory) FetchHistory(ctx context.Context, symbol trigger.Symbol) ([]trigger.RawPoint, error) {
	return s.points, nil
}

var _ fetcher.HistoryProvider = (*staticHistory)(nil)

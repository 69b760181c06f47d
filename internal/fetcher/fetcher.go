package fetcher

import (
	"context"

	"golang.org/x/sync/errgroup"

	"dip-trigger/internal/trigger"
)

// HistoryProvider retrieves a symbol's raw daily price history.
type HistoryProvider interface {
	FetchHistory(ctx context.Context, symbol trigger.Symbol) ([]trigger.RawPoint, error)
}

// ProviderFunc adapts a function to HistoryProvider.
type ProviderFunc func(ctx context.Context, symbol trigger.Symbol) ([]trigger.RawPoint, error)

// FetchHistory calls f.
func (f ProviderFunc) FetchHistory(ctx context.Context, symbol trigger.Symbol) ([]trigger.RawPoint, error) {
	return f(ctx, symbol)
}

// FetchAll resolves every symbol's history with at most concurrency requests
// in flight. Results keep the order of symbols and a failing symbol only
// carries its own error.
func FetchAll(ctx context.Context, provider HistoryProvider, symbols []trigger.Symbol, concurrency int) []trigger.SymbolHistory {
	out := make([]trigger.SymbolHistory, len(symbols))

	var g errgroup.Group
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			points, err := provider.FetchHistory(ctx, sym)
			out[i] = trigger.SymbolHistory{Symbol: sym, Points: points, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return out
}

package fetcher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"dip-trigger/internal/storage"
	"dip-trigger/internal/trigger"
)

// StoredOptions tune the persisted read-through.
type StoredOptions struct {
	// MinBars is the stored history length below which upstream is consulted.
	MinBars int
	// MaxStaleness bounds the age of the newest fetch served from storage.
	MaxStaleness time.Duration
	// Lookback bounds how far back stored bars are read.
	Lookback time.Duration
}

// Stored serves histories from PostgreSQL while they are fresh and refreshes
// them from the wrapped provider otherwise.
type Stored struct {
	next   HistoryProvider
	store  storage.BarStore
	opts   StoredOptions
	now    func() time.Time
	logger zerolog.Logger
}

// NewStored wraps next with a persisted read-through.
func NewStored(next HistoryProvider, store storage.BarStore, opts StoredOptions, logger zerolog.Logger) *Stored {
	if opts.Lookback <= 0 {
		opts.Lookback = 2 * 365 * 24 * time.Hour
	}
	return &Stored{
		next:   next,
		store:  store,
		opts:   opts,
		now:    time.Now,
		logger: logger.With().Str("component", "history_store").Logger(),
	}
}

// FetchHistory returns stored bars when fresh, otherwise upstream points which
// are then persisted. A storage failure degrades to an upstream fetch.
func (s *Stored) FetchHistory(ctx context.Context, symbol trigger.Symbol) ([]trigger.RawPoint, error) {
	now := s.now().UTC()

	bars, err := s.store.ListBars(ctx, symbol.String(), now.Add(-s.opts.Lookback))
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol.String()).Msg("read stored history failed; using upstream")
	} else if s.fresh(bars, now) {
		return barsToPoints(bars), nil
	}

	points, err := s.next.FetchHistory(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpsertBars(ctx, PointsToBars(symbol, points, now)); err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol.String()).Msg("persist history failed")
	}
	return points, nil
}

func (s *Stored) fresh(bars []storage.PriceBar, now time.Time) bool {
	if len(bars) == 0 || len(bars) < s.opts.MinBars {
		return false
	}
	var lastFetched time.Time
	for _, b := range bars {
		if b.FetchedAt.After(lastFetched) {
			lastFetched = b.FetchedAt
		}
	}
	return now.Sub(lastFetched) <= s.opts.MaxStaleness
}

// PointsToBars converts usable raw points into storage rows stamped with fetchedAt.
func PointsToBars(symbol trigger.Symbol, points []trigger.RawPoint, fetchedAt time.Time) []storage.PriceBar {
	bars := make([]storage.PriceBar, 0, len(points))
	for _, p := range points {
		if !p.Close.Valid || !p.Close.Decimal.IsPositive() {
			continue
		}
		bars = append(bars, storage.PriceBar{
			Symbol:    symbol.String(),
			Date:      trigger.CalendarDate(p.Time),
			Close:     p.Close.Decimal,
			FetchedAt: fetchedAt,
		})
	}
	return bars
}

func barsToPoints(bars []storage.PriceBar) []trigger.RawPoint {
	points := make([]trigger.RawPoint, len(bars))
	for i, b := range bars {
		points[i] = trigger.NewRawPoint(b.Date, b.Close)
	}
	return points
}

var _ HistoryProvider = (*Stored)(nil)

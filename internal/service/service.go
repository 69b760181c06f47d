package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"dip-trigger/internal/config"
	"dip-trigger/internal/fetcher"
	"dip-trigger/internal/storage"
	"dip-trigger/internal/trigger"
)

// ErrSyncInProgress reports that another process holds the sync lock.
var ErrSyncInProgress = errors.New("history sync already running elsewhere")

// Service orchestrates fetching and evaluation.
type Service struct {
	provider    fetcher.HistoryProvider
	symbols     []trigger.Symbol
	params      trigger.Params
	concurrency int
	lockKey     int64
	logger      zerolog.Logger
}

// New validates the trigger configuration and wires the provider. It fails
// with trigger.ErrInvalidConfig before any data is fetched.
func New(cfg *config.Config, provider fetcher.HistoryProvider, logger zerolog.Logger) (*Service, error) {
	params, err := cfg.Trigger.Params()
	if err != nil {
		return nil, err
	}
	symbols, err := cfg.Trigger.SymbolList()
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("history provider not configured")
	}

	return &Service{
		provider:    provider,
		symbols:     symbols,
		params:      params,
		concurrency: cfg.Provider.Concurrency,
		lockKey:     cfg.Scheduler.AdvisoryLockKey,
		logger:      logger.With().Str("component", "service").Logger(),
	}, nil
}

// Symbols returns the configured symbols.
func (s *Service) Symbols() []trigger.Symbol {
	return append([]trigger.Symbol(nil), s.symbols...)
}

// Params returns the configured evaluation parameters.
func (s *Service) Params() trigger.Params {
	return s.params
}

// Evaluate runs the configured parameters over symbols, or over the
// configured symbols when none are given.
func (s *Service) Evaluate(ctx context.Context, symbols []trigger.Symbol) (trigger.BatchResult, error) {
	return s.EvaluateWith(ctx, symbols, s.params)
}

// EvaluateWith validates params, fetches every symbol and evaluates the
// batch. Per-symbol failures land in the batch; only invalid params or a
// cancelled context fail the call.
func (s *Service) EvaluateWith(ctx context.Context, symbols []trigger.Symbol, params trigger.Params) (trigger.BatchResult, error) {
	if err := params.Validate(); err != nil {
		return trigger.BatchResult{}, err
	}
	if len(symbols) == 0 {
		symbols = s.symbols
	}

	histories := fetcher.FetchAll(ctx, s.provider, symbols, s.concurrency)
	if err := ctx.Err(); err != nil {
		return trigger.BatchResult{}, err
	}
	for _, h := range histories {
		if h.Err != nil {
			s.logger.Warn().Err(h.Err).Str("symbol", h.Symbol.String()).Msg("history unavailable")
		}
	}

	batch := trigger.EvaluateAll(histories, params)
	s.logBatch(batch)
	return batch, nil
}

// Tick adapts Evaluate to the scheduler.
func (s *Service) Tick(ctx context.Context, at time.Time) error {
	batch, err := s.Evaluate(ctx, nil)
	if err != nil {
		return err
	}
	s.logger.Info().Time("tick", at).Int("symbols", len(batch.Results)).Int("failed", batch.Failed()).Msg("evaluation complete")
	return nil
}

// Series fetches and normalizes one symbol's history for the given window.
func (s *Service) Series(ctx context.Context, symbol trigger.Symbol, window int) (trigger.PriceSeries, error) {
	raw, err := s.provider.FetchHistory(ctx, symbol)
	if err != nil {
		return trigger.PriceSeries{}, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	return trigger.Normalize(symbol, raw, window)
}

func (s *Service) logBatch(batch trigger.BatchResult) {
	for _, r := range batch.Results {
		if !r.OK() {
			s.logger.Info().Str("symbol", r.Symbol.String()).Str("error", string(r.Error)).Msg("symbol not evaluated")
			continue
		}
		s.logger.Info().
			Str("symbol", r.Symbol.String()).
			Str("signal", string(r.Signal)).
			Str("latest_price", r.LatestPrice.StringFixed(2)).
			Str("moving_average", r.MovingAverage.StringFixed(2)).
			Str("deviation_pct", r.DeviationPct.StringFixed(2)).
			Time("as_of", r.AsOfDate).
			Msg("symbol evaluated")
	}
}

// SyncReport summarises the refresh of one symbol.
type SyncReport struct {
	Symbol trigger.Symbol
	Bars   int
	Err    error
}

// Sync downloads every configured symbol from upstream and persists the bars.
// When store also implements storage.AdvisoryLocker and a lock key is set,
// only one process syncs at a time. Bars older than pruneBefore are deleted
// when pruneBefore is non-zero.
func (s *Service) Sync(ctx context.Context, upstream fetcher.HistoryProvider, store storage.BarStore, pruneBefore time.Time) ([]SyncReport, error) {
	if store == nil {
		return nil, storage.ErrNotConfigured
	}

	unlock, proceed, err := s.acquireLock(ctx, store)
	if err != nil {
		return nil, err
	}
	if !proceed {
		return nil, ErrSyncInProgress
	}
	if unlock != nil {
		defer unlock()
	}

	histories := fetcher.FetchAll(ctx, upstream, s.symbols, s.concurrency)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fetchedAt := time.Now().UTC()
	reports := make([]SyncReport, 0, len(histories))
	for _, h := range histories {
		report := SyncReport{Symbol: h.Symbol, Err: h.Err}
		if h.Err == nil {
			bars := fetcher.PointsToBars(h.Symbol, h.Points, fetchedAt)
			if err := store.UpsertBars(ctx, bars); err != nil {
				report.Err = err
			} else {
				report.Bars = len(bars)
			}
		}
		if report.Err != nil {
			s.logger.Error().Err(report.Err).Str("symbol", h.Symbol.String()).Msg("history sync failed")
		} else {
			s.logger.Info().Str("symbol", h.Symbol.String()).Int("bars", report.Bars).Msg("history synced")
		}
		reports = append(reports, report)
	}

	if !pruneBefore.IsZero() {
		removed, err := store.DeleteBarsBefore(ctx, pruneBefore)
		if err != nil {
			return reports, err
		}
		s.logger.Info().Int64("removed", removed).Time("before", pruneBefore).Msg("pruned stored history")
	}

	return reports, nil
}

func (s *Service) acquireLock(ctx context.Context, store storage.BarStore) (func(), bool, error) {
	locker, ok := store.(storage.AdvisoryLocker)
	if s.lockKey == 0 || !ok {
		return nil, true, nil
	}
	unlock, acquired, err := locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

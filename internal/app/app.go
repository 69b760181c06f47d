package app

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"dip-trigger/internal/config"
	"dip-trigger/internal/fetcher"
	"dip-trigger/internal/scheduler"
	"dip-trigger/internal/service"
	"dip-trigger/internal/storage"
	"dip-trigger/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer

	// provider replaces the configured provider chain when set.
	provider fetcher.HistoryProvider
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newUpstream() fetcher.HistoryProvider {
	p := a.Config.Provider
	return fetcher.NewYahoo(fetcher.YahooOptions{
		BaseURL:           p.BaseURL,
		Range:             p.Range,
		Timeout:           p.Timeout,
		Retries:           p.Retries,
		UserAgent:         p.UserAgent,
		RequestsPerMinute: p.RequestsPerMinute,
		Aliases:           p.Aliases,
	}, a.Logger)
}

// newProvider builds upstream -> optional PostgreSQL read-through -> optional
// in-memory cache. window is the evaluation window the stored history must
// cover. The returned closer may be nil.
func (a *App) newProvider(ctx context.Context, window int) (fetcher.HistoryProvider, func(), error) {
	if a.provider != nil {
		return a.provider, nil, nil
	}

	provider := a.newUpstream()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store != nil {
		provider = fetcher.NewStored(provider, store, a.storedOptions(window), a.Logger)
	}

	if a.Config.Cache.Enabled && a.Config.Cache.TTL > 0 {
		provider = fetcher.NewCached(provider, a.Config.Cache.TTL, a.Config.Cache.CleanupInterval, a.Logger)
	}

	return provider, closeStore, nil
}

func (a *App) storedOptions(window int) fetcher.StoredOptions {
	if window <= 0 {
		window = a.Config.Trigger.Window
	}
	return fetcher.StoredOptions{
		MinBars:      window,
		MaxStaleness: a.Config.Storage.MaxStaleness,
	}
}

func (a *App) newService(ctx context.Context, window int) (*service.Service, func(), error) {
	provider, closer, err := a.newProvider(ctx, window)
	if err != nil {
		return nil, nil, err
	}
	svc, err := service.New(a.Config, provider, a.Logger)
	if err != nil {
		if closer != nil {
			closer()
		}
		return nil, nil, err
	}
	return svc, closer, nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run evaluates the configured symbols on every scheduler tick.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched, err := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		Cron:         a.Config.Scheduler.Cron,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   true,
	}, a.Logger)
	if err != nil {
		return err
	}

	svc, closer, err := a.newService(ctx, a.Config.Trigger.Window)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}
	if a.Config.Database.DSN == "" {
		a.Logger.Warn().Msg("database.dsn not configured; history is fetched upstream on every tick")
	}

	a.Logger.Info().Str("version", version.Version).Int("symbols", len(svc.Symbols())).Msg("starting scheduled evaluation")
	err = sched.Run(ctx, svc.Tick)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("scheduler terminated with error")
		return err
	}

	a.Logger.Info().Msg("scheduled evaluation stopped")
	return nil
}

// EvaluateOptions configure a one-shot evaluation. Nil overrides fall back to
// configuration; a supplied override is always validated.
type EvaluateOptions struct {
	Symbols         []string
	Format          string
	Window          *int
	MildThreshold   *float64
	StrongThreshold *float64
}

// ExportOptions hold parameters for exporting one symbol's history.
type ExportOptions struct {
	Symbol    string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// SyncOptions configure the history sync job.
type SyncOptions struct {
	Retain time.Duration
}

// SimulateOptions describe a synthetic history.
type SimulateOptions struct {
	Symbol string
	Base   float64
	Latest float64
}

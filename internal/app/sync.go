package app

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"dip-trigger/internal/service"
	"dip-trigger/internal/storage"
)

// Sync refreshes the stored history of every configured symbol from upstream.
func (a *App) Sync(ctx context.Context, opts SyncOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot sync")
	}
	defer closeStore()

	upstream := a.newUpstream()
	svc, err := service.New(a.Config, upstream, a.Logger)
	if err != nil {
		return err
	}

	var pruneBefore time.Time
	if opts.Retain > 0 {
		pruneBefore = time.Now().UTC().Add(-opts.Retain)
	}

	reports, err := svc.Sync(ctx, upstream, store, pruneBefore)
	if errors.Is(err, service.ErrSyncInProgress) {
		a.Logger.Warn().Msg("another instance is syncing; skipping")
		return nil
	}
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range reports {
		if r.Err != nil {
			failed++
		}
	}
	a.Logger.Info().Int("symbols", len(reports)).Int("failed", failed).Msg("sync completed")
	if failed == len(reports) && failed > 0 {
		return fmt.Errorf("sync failed for all %d symbols", failed)
	}
	return nil
}

// Status prints a summary of the stored history per symbol.
func (a *App) Status(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; nothing stored")
	}
	defer closeStore()

	summaries, err := store.Summaries(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(a.Out, "no stored history")
		return nil
	}
	return renderSummaries(a, summaries)
}

func renderSummaries(a *App, summaries []storage.SymbolSummary) error {
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Symbol\tBars\tFirst\tLast\tFetched (UTC)\tStale")
	for _, s := range summaries {
		stale := time.Since(s.LastFetched) > a.Config.Storage.MaxStaleness
		fmt.Fprintf(writer, "%s\t%d\t%s\t%s\t%s\t%t\n",
			s.Symbol,
			s.Bars,
			s.FirstDate.Format("2006-01-02"),
			s.LastDate.Format("2006-01-02"),
			s.LastFetched.UTC().Format(time.RFC3339),
			stale,
		)
	}
	return writer.Flush()
}

// Migrate applies or rolls back the schema migrations.
func (a *App) Migrate(direction storage.MigrationDirection) error {
	changed, err := storage.Migrate(a.Config.Database, direction)
	if err != nil {
		return err
	}
	if !changed {
		a.Logger.Info().Str("direction", string(direction)).Msg("schema already up to date")
		return nil
	}
	a.Logger.Info().Str("direction", string(direction)).Msg("migrations applied")
	return nil
}

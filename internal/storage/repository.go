package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertBarSQL = `INSERT INTO price_bars (
        symbol,
        bar_date,
        close,
        fetched_at
    ) VALUES (
        $1,$2,$3::numeric,$4
    )
    ON CONFLICT (symbol, bar_date) DO UPDATE
    SET
        close      = EXCLUDED.close,
        fetched_at = EXCLUDED.fetched_at;`

	listBarsSQL = `SELECT
        symbol,
        bar_date,
        close::text,
        fetched_at
    FROM price_bars
    WHERE symbol = $1
      AND bar_date >= $2
    ORDER BY bar_date;`

	summarizeSQL = `SELECT
        symbol,
        COUNT(*),
        MIN(bar_date),
        MAX(bar_date),
        MAX(fetched_at)
    FROM price_bars
    GROUP BY symbol
    ORDER BY symbol;`

	deleteBarsBeforeSQL = `DELETE FROM price_bars WHERE bar_date < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// BarStore defines operations for price history persistence.
type BarStore interface {
	UpsertBars(ctx context.Context, bars []PriceBar) error
	ListBars(ctx context.Context, symbol string, since time.Time) ([]PriceBar, error)
	Summaries(ctx context.Context) ([]SymbolSummary, error)
	DeleteBarsBefore(ctx context.Context, before time.Time) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to persisted price bars.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the session lock also drops with the connection
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertBars persists bars in one batch; later bars for the same date win.
func (s *Store) UpsertBars(ctx context.Context, bars []PriceBar) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, bar := range bars {
		batch.Queue(upsertBarSQL, bar.Symbol, bar.Date, bar.Close.String(), bar.FetchedAt)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range bars {
		if _, execErr := results.Exec(); execErr != nil {
			return fmt.Errorf("upsert price bar %s %s: %w", bars[i].Symbol, bars[i].Date.Format(time.DateOnly), execErr)
		}
	}
	return nil
}

// ListBars lists a symbol's bars on or after since, ascending by date.
func (s *Store) ListBars(ctx context.Context, symbol string, since time.Time) ([]PriceBar, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listBarsSQL, symbol, since)
	if queryErr != nil {
		return nil, fmt.Errorf("list price bars: %w", queryErr)
	}
	defer rows.Close()

	bars := make([]PriceBar, 0)
	for rows.Next() {
		bar, scanErr := scanPriceBar(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		bars = append(bars, bar)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return bars, nil
}

// Summaries reports bar counts and date ranges per stored symbol.
func (s *Store) Summaries(ctx context.Context) ([]SymbolSummary, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, summarizeSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("summarize price bars: %w", queryErr)
	}
	defer rows.Close()

	summaries := make([]SymbolSummary, 0)
	for rows.Next() {
		var sum SymbolSummary
		if err := rows.Scan(&sum.Symbol, &sum.Bars, &sum.FirstDate, &sum.LastDate, &sum.LastFetched); err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return summaries, nil
}

// DeleteBarsBefore prunes bars older than before and returns the removed count.
func (s *Store) DeleteBarsBefore(ctx context.Context, before time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, deleteBarsBeforeSQL, before)
	if execErr != nil {
		return 0, fmt.Errorf("delete price bars before: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

func scanPriceBar(rows pgx.Rows) (PriceBar, error) {
	var (
		symbol    string
		date      time.Time
		closeStr  string
		fetchedAt time.Time
	)

	if err := rows.Scan(&symbol, &date, &closeStr, &fetchedAt); err != nil {
		return PriceBar{}, err
	}

	price, err := decimal.NewFromString(closeStr)
	if err != nil {
		return PriceBar{}, fmt.Errorf("parse close: %w", err)
	}

	return PriceBar{
		Symbol:    symbol,
		Date:      date.UTC(),
		Close:     price,
		FetchedAt: fetchedAt,
	}, nil
}

var (
	_ BarStore       = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)

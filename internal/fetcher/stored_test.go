package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dip-trigger/internal/storage"
	"dip-trigger/internal/trigger"
)

type fakeBarStore struct {
	bars    map[string][]storage.PriceBar
	listErr error
	upserts int
}

func (f *fakeBarStore) UpsertBars(ctx context.Context, bars []storage.PriceBar) error {
	f.upserts++
	if f.bars == nil {
		f.bars = make(map[string][]storage.PriceBar)
	}
	for _, b := range bars {
		f.bars[b.Symbol] = append(f.bars[b.Symbol], b)
	}
	return nil
}

func (f *fakeBarStore) ListBars(ctx context.Context, symbol string, since time.Time) ([]storage.PriceBar, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.bars[symbol], nil
}

func (f *fakeBarStore) Summaries(ctx context.Context) ([]storage.SymbolSummary, error) {
	return nil, nil
}

func (f *fakeBarStore) DeleteBarsBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func newStoredForTest(next HistoryProvider, store storage.BarStore, now time.Time) *Stored {
	s := NewStored(next, store, StoredOptions{MinBars: 3, MaxStaleness: time.Hour}, noopLogger())
	s.now = func() time.Time { return now }
	return s
}

func TestStoredFetchesAndPersistsWhenEmpty(t *testing.T) {
	calls := 0
	next := ProviderFunc(func(ctx context.Context, symbol trigger.Symbol) ([]trigger.RawPoint, error) {
		calls++
		points := history(4, 100)
		points = append(points, trigger.RawPoint{Time: day0.AddDate(0, 0, 10)})
		return points, nil
	})
	store := &fakeBarStore{}
	now := day0.AddDate(0, 0, 20)
	stored := newStoredForTest(next, store, now)

	points, err := stored.FetchHistory(context.Background(), "SPX")
	require.NoError(t, err)
	assert.Len(t, points, 5)
	assert.Equal(t, 1, calls)
	require.Len(t, store.bars["SPX"], 4)
	assert.Equal(t, now, store.bars["SPX"][0].FetchedAt)

	again, err := stored.FetchHistory(context.Background(), "SPX")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, again, 4)
	assert.True(t, again[3].Close.Decimal.Equal(decimal.NewFromInt(100)))
}

func TestStoredRefreshesStaleHistory(t *testing.T) {
	calls := 0
	next := ProviderFunc(func(ctx context.Context, symbol trigger.Symbol) ([]trigger.RawPoint, error) {
		calls++
		return history(4, 100), nil
	})
	store := &fakeBarStore{}
	stale := day0.AddDate(0, 0, 20)
	store.bars = map[string][]storage.PriceBar{"SPX": PointsToBars("SPX", history(4, 90), stale)}

	stored := newStoredForTest(next, store, stale.Add(2*time.Hour))
	_, err := stored.FetchHistory(context.Background(), "SPX")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, store.upserts)
}

func TestStoredFallsBackWhenStorageFails(t *testing.T) {
	next := ProviderFunc(func(ctx context.Context, symbol trigger.Symbol) ([]trigger.RawPoint, error) {
		return history(4, 100), nil
	})
	store := &fakeBarStore{listErr: errors.New("db down")}
	stored := newStoredForTest(next, store, day0)

	points, err := stored.FetchHistory(context.Background(), "SPX")
	require.NoError(t, err)
	assert.Len(t, points, 4)
}

func TestStoredPropagatesUpstreamFailure(t *testing.T) {
	next := ProviderFunc(func(ctx context.Context, symbol trigger.Symbol) ([]trigger.RawPoint, error) {
		return nil, errors.New("outage")
	})
	stored := newStoredForTest(next, &fakeBarStore{}, day0)

	_, err := stored.FetchHistory(context.Background(), "SPX")
	require.Error(t, err)
}

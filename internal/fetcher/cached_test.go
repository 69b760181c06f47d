package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dip-trigger/internal/trigger"
)

func TestCachedServesRepeatFetchFromMemory(t *testing.T) {
	calls := 0
	next := ProviderFunc(func(ctx context.Context, symbol trigger.Symbol) ([]trigger.RawPoint, error) {
		calls++
		return history(5, 100), nil
	})
	cached := NewCached(next, time.Minute, time.Minute, noopLogger())

	first, err := cached.FetchHistory(context.Background(), "SPX")
	require.NoError(t, err)
	second, err := cached.FetchHistory(context.Background(), "SPX")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	cached.Invalidate("SPX")
	_, err = cached.FetchHistory(context.Background(), "SPX")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCachedDoesNotCacheFailures(t *testing.T) {
	calls := 0
	next := ProviderFunc(func(ctx context.Context, symbol trigger.Symbol) ([]trigger.RawPoint, error) {
		calls++
		return nil, errors.New("outage")
	})
	cached := NewCached(next, time.Minute, time.Minute, noopLogger())

	_, err := cached.FetchHistory(context.Background(), "SPX")
	require.Error(t, err)
	_, err = cached.FetchHistory(context.Background(), "SPX")
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

package fetcher

import (
	"context"
	"slices"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"dip-trigger/internal/trigger"
)

// Cached keeps successful histories in memory for a TTL.
type Cached struct {
	next   HistoryProvider
	cache  *gocache.Cache
	logger zerolog.Logger
}

// NewCached wraps next with an expiring in-memory cache.
func NewCached(next HistoryProvider, ttl, cleanupInterval time.Duration, logger zerolog.Logger) *Cached {
	return &Cached{
		next:   next,
		cache:  gocache.New(ttl, cleanupInterval),
		logger: logger.With().Str("component", "history_cache").Logger(),
	}
}

// FetchHistory serves from cache, falling back to the wrapped provider.
// Failures are never cached.
func (c *Cached) FetchHistory(ctx context.Context, symbol trigger.Symbol) ([]trigger.RawPoint, error) {
	key := symbol.String()
	if v, ok := c.cache.Get(key); ok {
		if points, ok := v.([]trigger.RawPoint); ok {
			c.logger.Debug().Str("symbol", key).Msg("cache hit")
			return slices.Clone(points), nil
		}
	}

	points, err := c.next.FetchHistory(ctx, symbol)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, slices.Clone(points))
	return points, nil
}

// Invalidate drops a cached symbol.
func (c *Cached) Invalidate(symbol trigger.Symbol) {
	c.cache.Delete(symbol.String())
}

var _ HistoryProvider = (*Cached)(nil)

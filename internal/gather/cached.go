package gather

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"stockdash/internal/domain"
	"stockdash/internal/metrics"
	"stockdash/internal/pricecache"
)

var _ Source = (*CachedSource)(nil)

// CachedSource memoizes a Source. The stock list is kept after the first
// successful call; price histories are cached per (ticker, window) for the
// life of the cache. Concurrent identical requests share one upstream call.
// Failures are never cached.
type CachedSource struct {
	src   Source
	cache pricecache.Cache
	log   *slog.Logger
	group singleflight.Group

	mu     sync.RWMutex
	stocks []domain.Stock
}

// NewCachedSource wraps src with cache.
func NewCachedSource(src Source, cache pricecache.Cache, log *slog.Logger) *CachedSource {
	if log == nil {
		log = slog.Default()
	}
	return &CachedSource{
		src:   src,
		cache: cache,
		log:   log.With("component", "price-cache"),
	}
}

// Name implements Source.
func (c *CachedSource) Name() string { return c.src.Name() }

// Upstream returns the wrapped source, for callers that need fresh data.
func (c *CachedSource) Upstream() Source { return c.src }

// Stocks implements Source.
func (c *CachedSource) Stocks(ctx context.Context) ([]domain.Stock, error) {
	if s := c.cachedStocks(); s != nil {
		metrics.CacheLookups.WithLabelValues("stocks", "hit").Inc()
		return slices.Clone(s), nil
	}
	metrics.CacheLookups.WithLabelValues("stocks", "miss").Inc()

	v, err := c.do(ctx, "stocks", "stocks", func(fctx context.Context) (any, error) {
		if s := c.cachedStocks(); s != nil {
			return s, nil
		}
		s, err := c.src.Stocks(fctx)
		if err != nil {
			return nil, err
		}
		if s == nil {
			s = []domain.Stock{}
		}
		c.mu.Lock()
		if c.stocks == nil {
			c.stocks = s
		}
		s = c.stocks
		c.mu.Unlock()
		c.log.Info("stock list cached", "count", len(s))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]domain.Stock)), nil
}

func (c *CachedSource) cachedStocks() []domain.Stock {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stocks
}

// PriceHistory implements Source.
func (c *CachedSource) PriceHistory(ctx context.Context, ticker domain.Ticker, window domain.Window) (domain.PriceSeries, error) {
	key := domain.CacheKey(ticker, window)
	if s, ok := c.lookup(ctx, key); ok {
		metrics.CacheLookups.WithLabelValues("history", "hit").Inc()
		return s, nil
	}
	metrics.CacheLookups.WithLabelValues("history", "miss").Inc()

	v, err := c.do(ctx, "history:"+key, "history", func(fctx context.Context) (any, error) {
		// A caller that missed just before the previous flight stored its
		// result lands here; serve the stored value instead of refetching.
		if s, ok := c.lookup(fctx, key); ok {
			return s, nil
		}
		s, err := c.src.PriceHistory(fctx, ticker, window)
		if err != nil {
			return nil, err
		}
		if s == nil {
			s = domain.PriceSeries{}
		}
		if err := c.cache.Set(fctx, key, s); err != nil {
			c.log.Warn("caching price history", "key", key, "error", err)
		}
		c.log.Debug("price history cached", "key", key, "points", len(s))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(domain.PriceSeries), nil
}

func (c *CachedSource) lookup(ctx context.Context, key string) (domain.PriceSeries, bool) {
	s, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.Warn("reading price cache", "key", key, "error", err)
		return nil, false
	}
	return s, ok
}

// do runs fn once per key among concurrent callers. fn runs detached from
// the caller's cancellation so that a caller giving up (for example a view
// superseded by a newer refresh) does not fail the other waiters; each
// caller still returns as soon as its own ctx is done.
func (c *CachedSource) do(ctx context.Context, key, kind string, fn func(context.Context) (any, error)) (any, error) {
	fctx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) { return fn(fctx) })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			metrics.CacheLookups.WithLabelValues(kind, "shared").Inc()
		}
		return res.Val, res.Err
	}
}

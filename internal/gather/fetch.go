package gather

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"stockdash/internal/domain"
)

// ErrUnknownTicker is returned when a requested ticker is not in the universe.
var ErrUnknownTicker = errors.New("unknown ticker")

// maxConcurrentFetches bounds the per-refresh fan-out.
const maxConcurrentFetches = 8

// FetchSet fetches the history of every stock concurrently. The first
// failure cancels the remaining fetches and is returned; no partial set is
// produced.
func FetchSet(ctx context.Context, src Source, stocks []domain.Stock, window domain.Window) (domain.PriceSeriesSet, error) {
	results := make([]domain.PriceSeries, len(stocks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, st := range stocks {
		g.Go(func() error {
			s, err := src.PriceHistory(gctx, st.Ticker, window)
			if err != nil {
				return fmt.Errorf("%s: %w", st.Ticker, err)
			}
			results[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.PriceSeriesSet{}, err
	}

	set := domain.PriceSeriesSet{
		Stocks: stocks,
		Series: make(map[domain.Ticker]domain.PriceSeries, len(stocks)),
	}
	for i, st := range stocks {
		set.Series[st.Ticker] = results[i]
	}
	return set, nil
}

// SelectStocks returns the stocks of universe named by tickers, in the order
// given. An empty tickers list selects the whole universe.
func SelectStocks(universe []domain.Stock, tickers []domain.Ticker) ([]domain.Stock, error) {
	if len(tickers) == 0 {
		return universe, nil
	}
	byTicker := make(map[domain.Ticker]domain.Stock, len(universe))
	for _, s := range universe {
		byTicker[s.Ticker] = s
	}
	out := make([]domain.Stock, 0, len(tickers))
	seen := make(map[domain.Ticker]bool, len(tickers))
	for _, t := range tickers {
		s, ok := byTicker[t]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownTicker, t)
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, s)
	}
	return out, nil
}

// StockNames maps each ticker to its display name.
func StockNames(stocks []domain.Stock) map[domain.Ticker]string {
	m := make(map[domain.Ticker]string, len(stocks))
	for _, s := range stocks {
		m[s.Ticker] = s.Name
	}
	return m
}

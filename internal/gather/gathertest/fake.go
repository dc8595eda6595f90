// Package gathertest provides an in-memory gather.Source for tests.
package gathertest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"stockdash/internal/domain"
	"stockdash/internal/gather"
)

var _ gather.Source = (*Fake)(nil)

// Fake serves fixed stocks and series. Series are looked up by
// domain.CacheKey first, then by ticker alone.
type Fake struct {
	StockList []domain.Stock
	Series    map[string]domain.PriceSeries
	// Err, when set, is returned by every call.
	Err error
	// ErrFor fails PriceHistory for specific tickers.
	ErrFor map[domain.Ticker]error
	// Gate, when non-nil, blocks each call until it is closed or receives.
	Gate chan struct{}
	// Delay, when set, is applied per ticker before answering.
	Delay map[domain.Ticker]time.Duration

	mu           sync.Mutex
	stockCalls   atomic.Int64
	historyCalls atomic.Int64
	perKey       map[string]int
}

// Name implements gather.Source.
func (f *Fake) Name() string { return "fake" }

// Stocks implements gather.Source.
func (f *Fake) Stocks(ctx context.Context) ([]domain.Stock, error) {
	f.stockCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, &gather.FetchError{Op: gather.OpStocks, Status: 500, Err: f.Err}
	}
	return append([]domain.Stock(nil), f.StockList...), nil
}

// PriceHistory implements gather.Source.
func (f *Fake) PriceHistory(ctx context.Context, ticker domain.Ticker, window domain.Window) (domain.PriceSeries, error) {
	f.historyCalls.Add(1)
	key := domain.CacheKey(ticker, window)
	f.mu.Lock()
	if f.perKey == nil {
		f.perKey = make(map[string]int)
	}
	f.perKey[key]++
	f.mu.Unlock()

	if d := f.Delay[ticker]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, &gather.FetchError{Op: gather.OpPriceHistory, Status: 500, Err: f.Err}
	}
	if err := f.ErrFor[ticker]; err != nil {
		return nil, &gather.FetchError{Op: gather.OpPriceHistory, Status: 500, Err: err}
	}
	if s, ok := f.Series[key]; ok {
		return s, nil
	}
	return f.Series[string(ticker)], nil
}

func (f *Fake) wait(ctx context.Context) error {
	if f.Gate == nil {
		return nil
	}
	select {
	case <-f.Gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StockCalls returns the number of Stocks calls.
func (f *Fake) StockCalls() int { return int(f.stockCalls.Load()) }

// HistoryCalls returns the number of PriceHistory calls.
func (f *Fake) HistoryCalls() int { return int(f.historyCalls.Load()) }

// CallsFor returns the number of PriceHistory calls for (ticker, window).
func (f *Fake) CallsFor(ticker domain.Ticker, window domain.Window) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perKey[domain.CacheKey(ticker, window)]
}

// Ramp builds n samples starting at start and moving by step each minute.
func Ramp(n int, start, step float64) domain.PriceSeries {
	base := time.Date(2025, 5, 8, 4, 0, 0, 0, time.UTC)
	s := make(domain.PriceSeries, n)
	for i := range s {
		s[i] = domain.PricePoint{Price: start + float64(i)*step, Timestamp: base.Add(time.Duration(i) * time.Minute)}
	}
	return s
}

// Universe is a small fixed stock list.
func Universe() []domain.Stock {
	return []domain.Stock{
		{Name: "Nvidia Corporation", Ticker: "NVDA"},
		{Name: "PayPal Holdings, Inc.", Ticker: "PYPL"},
		{Name: "Apple Inc.", Ticker: "AAPL"},
	}
}

// NewFake returns a Fake over Universe with rising NVDA and AAPL series and
// a falling PYPL series of 10 samples each.
func NewFake() *Fake {
	return &Fake{
		StockList: Universe(),
		Series: map[string]domain.PriceSeries{
			"NVDA": Ramp(10, 100, 1),
			"PYPL": Ramp(10, 80, -1),
			"AAPL": Ramp(10, 200, 2),
		},
	}
}

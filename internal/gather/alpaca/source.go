// Package alpaca implements gather.Source over Alpaca market-data minute
// bars for a configured universe.
package alpaca

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"stockdash/internal/domain"
	"stockdash/internal/gather"
	"stockdash/internal/metrics"
	"stockdash/internal/util"
)

var _ gather.Source = (*Source)(nil)

// fullHistory is the lookback served for domain.WindowAll.
const fullHistory = 24 * time.Hour

// Options configures a Source.
type Options struct {
	APIKey          string
	APISecret       string
	DataURL         string
	Feed            string
	RateLimitPerMin int
	// Universe maps display name to ticker.
	Universe map[string]string
}

// Source serves minute-bar closes as price samples.
type Source struct {
	client   *marketdata.Client
	feed     marketdata.Feed
	universe []domain.Stock
	limiter  *util.RateLimiter
	now      func() time.Time
	log      *slog.Logger
}

// New creates a Source. The universe is ordered by display name.
func New(opts Options, log *slog.Logger) *Source {
	if log == nil {
		log = slog.Default()
	}
	co := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.DataURL != "" {
		co.BaseURL = opts.DataURL
	}
	return &Source{
		client:   marketdata.NewClient(co),
		feed:     marketdata.Feed(opts.Feed),
		universe: universeStocks(opts.Universe),
		limiter:  util.NewRateLimiter("alpaca", opts.RateLimitPerMin),
		now:      time.Now,
		log:      log.With("source", "alpaca"),
	}
}

func universeStocks(u map[string]string) []domain.Stock {
	stocks := make([]domain.Stock, 0, len(u))
	for name, ticker := range u {
		stocks = append(stocks, domain.Stock{Name: name, Ticker: domain.Ticker(ticker)})
	}
	sort.Slice(stocks, func(i, j int) bool { return stocks[i].Name < stocks[j].Name })
	return stocks
}

// Name implements gather.Source.
func (s *Source) Name() string { return "alpaca" }

// Stocks implements gather.Source.
func (s *Source) Stocks(_ context.Context) ([]domain.Stock, error) {
	return append([]domain.Stock(nil), s.universe...), nil
}

// PriceHistory implements gather.Source.
func (s *Source) PriceHistory(ctx context.Context, ticker domain.Ticker, window domain.Window) (domain.PriceSeries, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &gather.FetchError{Op: gather.OpPriceHistory, URL: "alpaca:" + string(ticker), Err: err}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	r := gather.WindowRange(s.now(), window, fullHistory)
	start := time.Now()
	bars, err := s.client.GetBars(string(ticker), marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneMin,
		Start:     r.Start,
		End:       r.End,
		Feed:      s.feed,
	})
	if err != nil {
		metrics.ObserveUpstream(s.Name(), gather.OpPriceHistory, "error", start)
		return nil, &gather.FetchError{
			Op:  gather.OpPriceHistory,
			URL: "alpaca:" + string(ticker),
			Err: fmt.Errorf("GetBars: %w", err),
		}
	}
	metrics.ObserveUpstream(s.Name(), gather.OpPriceHistory, "ok", start)
	s.log.Debug("bars fetched", "ticker", ticker, "minutes", window.Minutes(), "bars", len(bars))
	return BarsToSeries(bars), nil
}

// BarsToSeries maps bars to samples: close as price, volume as volume.
func BarsToSeries(bars []marketdata.Bar) domain.PriceSeries {
	s := make(domain.PriceSeries, len(bars))
	for i, b := range bars {
		vol := float64(b.Volume)
		s[i] = domain.PricePoint{
			Price:     b.Close,
			Timestamp: b.Timestamp,
			Volume:    &vol,
		}
	}
	return s
}

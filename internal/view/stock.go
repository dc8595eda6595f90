package view

import (
	"context"
	"fmt"
	"time"

	"stockdash/internal/dashboard"
	"stockdash/internal/domain"
	"stockdash/internal/gather"
)

// StockView controls the single-stock chart: a selected ticker and window,
// and the chart of that ticker's history with its average price.
type StockView struct {
	controller
	loc *time.Location
}

// NewStockView creates a StockView fetching through src.
func NewStockView(src gather.Source, opts Options) *StockView {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &StockView{controller: newController(StockViewName, src, opts), loc: loc}
}

// Init loads the stock list, selects the first stock and loads its chart.
func (v *StockView) Init(ctx context.Context) (State, error) {
	return v.Load(ctx, "", v.State().Window)
}

// Load loads the stock list and then the chart of ticker over window. An
// empty ticker selects the first stock.
func (v *StockView) Load(ctx context.Context, ticker domain.Ticker, window domain.Window) (State, error) {
	stocks, err := v.loadStocks(ctx)
	if err != nil {
		return v.State(), err
	}
	if len(stocks) == 0 {
		return v.State(), nil
	}
	if ticker == "" {
		ticker = stocks[0].Ticker
	}
	return v.Select(ctx, ticker, window)
}

// SetTicker changes the selected ticker, keeping the window.
func (v *StockView) SetTicker(ctx context.Context, ticker domain.Ticker) (State, error) {
	return v.Select(ctx, ticker, v.State().Window)
}

// SetWindow changes the selected window, keeping the ticker.
func (v *StockView) SetWindow(ctx context.Context, window domain.Window) (State, error) {
	return v.Select(ctx, v.State().Ticker, window)
}

// Select sets ticker and window and reloads the chart. It blocks until the
// fetch finishes and returns ErrStale when a later selection superseded it.
func (v *StockView) Select(ctx context.Context, ticker domain.Ticker, window domain.Window) (State, error) {
	if err := validWindow(window); err != nil {
		return v.State(), err
	}
	if ticker == "" {
		return v.State(), fmt.Errorf("%w: empty ticker", gather.ErrUnknownTicker)
	}
	if st := v.State(); st.Stocks != nil && !hasTicker(st.Stocks, ticker) {
		return st, fmt.Errorf("%w %q", gather.ErrUnknownTicker, ticker)
	}

	ctx, seq := v.begin(ctx, func(s *State) {
		s.Ticker = ticker
		s.Window = window
	})

	series, err := v.src.PriceHistory(ctx, ticker, window)

	return v.finish(seq, func(s *State) {
		if err != nil {
			v.log.Warn("loading price history", "ticker", ticker, "minutes", window.Minutes(), "error", err)
			s.Error = gather.UserMessage(err)
			s.Chart = nil
			return
		}
		chart := dashboard.NewChart(ticker, window, series, v.loc)
		s.Chart = &chart
	})
}

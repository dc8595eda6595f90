// Package domain defines the core types shared across stockdash: tickers,
// price points, series, query windows and correlation matrices.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Ticker is an opaque stock symbol, unique within a session.
type Ticker string

// Stock is one entry of the tracked universe.
type Stock struct {
	Name   string `json:"name"`
	Ticker Ticker `json:"ticker"`
}

// PricePoint is a single sample of a stock's price. Immutable once fetched.
type PricePoint struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"lastUpdatedAt"`
	Volume    *float64  `json:"volume,omitempty"`
}

// PriceSeries is an ordered sequence of samples as delivered upstream
// (ascending timestamp). It is never re-sorted.
type PriceSeries []PricePoint

// Prices returns the price column of the series.
func (s PriceSeries) Prices() []float64 {
	out := make([]float64, len(s))
	for i := range s {
		out[i] = s[i].Price
	}
	return out
}

// PriceSeriesSet groups the fetched series for an ordered set of stocks.
// The stock order is the row/column order of any matrix derived from it.
type PriceSeriesSet struct {
	Stocks []Stock
	Series map[Ticker]PriceSeries
}

// Tickers returns the tickers in stock order.
func (s PriceSeriesSet) Tickers() []Ticker {
	out := make([]Ticker, len(s.Stocks))
	for i, st := range s.Stocks {
		out[i] = st.Ticker
	}
	return out
}

// ---------------------------------------------------------------------------
// Windows
// ---------------------------------------------------------------------------

// Window is a lookback length in minutes. WindowAll requests the full history.
type Window int

// WindowAll means "no minutes parameter": the full history.
const WindowAll Window = 0

// DashboardWindows are the fixed choices offered by the dashboard views.
var DashboardWindows = []Window{5, 15, 30, 60}

// Minutes returns the window length as an int.
func (w Window) Minutes() int { return int(w) }

// Key returns the cache-key form of the window: the minute count, or "all".
func (w Window) Key() string {
	if w == WindowAll {
		return "all"
	}
	return strconv.Itoa(int(w))
}

// Label returns a human-readable description.
func (w Window) Label() string {
	if w == WindowAll {
		return "All history"
	}
	return fmt.Sprintf("Last %d minutes", int(w))
}

// IsDashboardWindow reports whether w is one of DashboardWindows.
func (w Window) IsDashboardWindow() bool {
	for _, d := range DashboardWindows {
		if w == d {
			return true
		}
	}
	return false
}

// ParseWindow parses a minutes value. An empty string or "all" yields
// WindowAll; negative values are rejected.
func ParseWindow(s string) (Window, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return WindowAll, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid window %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid window %q: must not be negative", s)
	}
	return Window(n), nil
}

// CacheKey identifies a price history query: "<ticker>_<minutes|all>".
func CacheKey(t Ticker, w Window) string {
	return string(t) + "_" + w.Key()
}

// ---------------------------------------------------------------------------
// Correlation results
// ---------------------------------------------------------------------------

// Matrix is a square pairwise correlation matrix indexed like Tickers.
// Undefined marks cells whose coefficient was not a finite number (zero
// variance or a single aligned sample); such cells hold 0.
type Matrix struct {
	Tickers       []Ticker    `json:"tickers"`
	Values        [][]float64 `json:"values"`
	Undefined     [][]bool    `json:"undefined"`
	AlignedLength int         `json:"alignedLength"`
}

// NewMatrix allocates a zeroed matrix for the given tickers.
func NewMatrix(tickers []Ticker, alignedLength int) Matrix {
	n := len(tickers)
	m := Matrix{
		Tickers:       append([]Ticker(nil), tickers...),
		Values:        make([][]float64, n),
		Undefined:     make([][]bool, n),
		AlignedLength: alignedLength,
	}
	for i := 0; i < n; i++ {
		m.Values[i] = make([]float64, n)
		m.Undefined[i] = make([]bool, n)
	}
	return m
}

// Len returns the number of rows (and columns).
func (m Matrix) Len() int { return len(m.Tickers) }

// Snapshot is a recorded correlation matrix for one window.
type Snapshot struct {
	ID      string    `json:"id"`
	Window  Window    `json:"minutes"`
	Matrix  Matrix    `json:"matrix"`
	Hash    string    `json:"hash"`
	TakenAt time.Time `json:"takenAt"`
}

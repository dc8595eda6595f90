// Package gather defines price sources and the memoizing layer the views
// fetch through.
package gather

import (
	"context"
	"time"

	"stockdash/internal/domain"
)

// Source is the interface for all price data providers.
type Source interface {
	// Name returns the source identifier used in logs and metrics.
	Name() string
	// Stocks returns the tracked universe in provider order.
	Stocks(ctx context.Context) ([]domain.Stock, error)
	// PriceHistory returns the samples for ticker over the last window
	// minutes, or the full history for domain.WindowAll.
	PriceHistory(ctx context.Context, ticker domain.Ticker, window domain.Window) (domain.PriceSeries, error)
}

// DateRange represents a time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// WindowRange returns the range covered by window ending at now. fullHistory
// is the lookback used for domain.WindowAll.
func WindowRange(now time.Time, window domain.Window, fullHistory time.Duration) DateRange {
	lookback := fullHistory
	if window != domain.WindowAll {
		lookback = time.Duration(window.Minutes()) * time.Minute
	}
	return DateRange{Start: now.Add(-lookback), End: now}
}

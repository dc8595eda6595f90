// Package store defines storage interfaces for persisting recorded
// correlation snapshots and archiving the price series behind them.
package store

import (
	"context"
	"time"

	"stockdash/internal/domain"
)

// SnapshotStore persists and retrieves correlation snapshots.
type SnapshotStore interface {
	// SaveSnapshot inserts a snapshot. A snapshot whose (window, hash) pair
	// is already stored is skipped and reported with inserted == false.
	SaveSnapshot(ctx context.Context, snap *domain.Snapshot) (inserted bool, err error)

	// ListSnapshots returns the most recent snapshots, newest first, up to
	// limit. A window of -1 lists every window.
	ListSnapshots(ctx context.Context, window domain.Window, limit int) ([]domain.Snapshot, error)

	// LatestSnapshot returns the most recent snapshot for a window, or nil.
	LatestSnapshot(ctx context.Context, window domain.Window) (*domain.Snapshot, error)
}

// SeriesArchive persists raw price samples.
type SeriesArchive interface {
	// WriteSeries archives the samples of one ticker fetched for window.
	WriteSeries(ctx context.Context, ticker domain.Ticker, window domain.Window, series domain.PriceSeries) error

	// ReadSeries returns archived samples for ticker and window within
	// [start, end], ordered by time.
	ReadSeries(ctx context.Context, ticker domain.Ticker, window domain.Window, start, end time.Time) (domain.PriceSeries, error)
}

// AnyWindow selects every window in ListSnapshots.
const AnyWindow domain.Window = -1

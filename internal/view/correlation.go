package view

import (
	"context"

	"stockdash/internal/dashboard"
	"stockdash/internal/domain"
	"stockdash/internal/engine"
	"stockdash/internal/gather"
	"stockdash/internal/metrics"
)

// CorrelationView controls the heatmap: a selected window and the
// correlation matrix of every tracked stock over it.
type CorrelationView struct {
	controller
}

// NewCorrelationView creates a CorrelationView fetching through src.
func NewCorrelationView(src gather.Source, opts Options) *CorrelationView {
	return &CorrelationView{controller: newController(CorrelationViewName, src, opts)}
}

// Init loads the stock list and computes the heatmap for the default window.
func (v *CorrelationView) Init(ctx context.Context) (State, error) {
	return v.Load(ctx, v.State().Window)
}

// Load loads the stock list and computes the heatmap for window.
func (v *CorrelationView) Load(ctx context.Context, window domain.Window) (State, error) {
	if _, err := v.loadStocks(ctx); err != nil {
		return v.State(), err
	}
	return v.SetWindow(ctx, window)
}

// SetWindow changes the window and recomputes the heatmap. All stocks are
// fetched concurrently; the matrix is computed only when every fetch
// succeeded. It returns ErrStale when a later selection superseded it.
func (v *CorrelationView) SetWindow(ctx context.Context, window domain.Window) (State, error) {
	if err := validWindow(window); err != nil {
		return v.State(), err
	}
	stocks := v.State().Stocks

	ctx, seq := v.begin(ctx, func(s *State) {
		s.Window = window
	})

	set, err := gather.FetchSet(ctx, v.src, stocks, window)
	var heatmap dashboard.Heatmap
	if err == nil {
		m := engine.ComputeSet(set)
		metrics.MatrixComputations.WithLabelValues("view").Inc()
		metrics.UndefinedCoefficients.Add(float64(engine.UndefinedCount(m)))
		heatmap = dashboard.NewHeatmap(m, gather.StockNames(stocks))
	}

	return v.finish(seq, func(s *State) {
		if err != nil {
			v.log.Warn("loading correlation data", "minutes", window.Minutes(), "error", err)
			s.Error = gather.UserMessage(err)
			s.Heatmap = nil
			return
		}
		s.Heatmap = &heatmap
	})
}

// Package view holds the dashboard view controllers. A controller owns the
// UI state of one view (selection, loading flag, error, rendered model) and
// re-runs the fetch-and-compute pipeline whenever the selection changes.
//
// Every refresh takes a new sequence number and cancels the refresh before
// it. A result is applied only while its sequence number is still the
// latest, so a slow response can never overwrite a newer selection.
package view

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"stockdash/internal/dashboard"
	"stockdash/internal/domain"
	"stockdash/internal/gather"
	"stockdash/internal/metrics"
)

// View names.
const (
	StockViewName       = "stock"
	CorrelationViewName = "correlation"
)

// ErrStale is returned by a refresh whose result was discarded because a
// newer refresh started before it finished.
var ErrStale = errors.New("view: superseded by a newer refresh")

// ErrInvalidWindow is returned for a window outside domain.DashboardWindows.
var ErrInvalidWindow = errors.New("view: unsupported window")

// State is a point-in-time copy of a view's state.
type State struct {
	View    string             `json:"view"`
	Seq     uint64             `json:"seq"`
	Loading bool               `json:"loading"`
	Error   string             `json:"error,omitempty"`
	Stocks  []domain.Stock     `json:"stocks,omitempty"`
	Ticker  domain.Ticker      `json:"ticker,omitempty"`
	Window  domain.Window      `json:"minutes"`
	Windows []domain.Window    `json:"windows"`
	Chart   *dashboard.Chart   `json:"chart,omitempty"`
	Heatmap *dashboard.Heatmap `json:"heatmap,omitempty"`
}

// Options configures a view controller.
type Options struct {
	// DefaultWindow is the initial selection; 0 means 5 minutes.
	DefaultWindow domain.Window
	// Location formats chart times; nil means UTC.
	Location *time.Location
	// OnChange, when set, receives every state transition in order. It is
	// called with the controller locked and must not call back into it.
	OnChange func(State)
	Logger   *slog.Logger
}

// controller is the state machine shared by both views.
type controller struct {
	src      gather.Source
	log      *slog.Logger
	onChange func(State)

	mu     sync.Mutex
	state  State
	seq    uint64
	cancel context.CancelFunc
}

func newController(name string, src gather.Source, opts Options) controller {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	window := opts.DefaultWindow
	if window == 0 {
		window = domain.DashboardWindows[0]
	}
	return controller{
		src:      src,
		log:      log.With("view", name),
		onChange: opts.OnChange,
		state: State{
			View:    name,
			Window:  window,
			Windows: domain.DashboardWindows,
		},
	}
}

// State returns the current state.
func (c *controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *controller) publishLocked() {
	if c.onChange != nil {
		c.onChange(c.state)
	}
}

// loadStocks fetches the stock list into the state.
func (c *controller) loadStocks(ctx context.Context) ([]domain.Stock, error) {
	stocks, err := c.src.Stocks(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.log.Warn("loading stocks", "error", err)
		c.state.Error = gather.UserMessage(err)
	} else {
		c.state.Stocks = stocks
		c.state.Error = ""
	}
	c.publishLocked()
	return stocks, err
}

// begin starts a refresh generation: it cancels the previous one, applies
// the new selection, marks the view loading and returns the context and
// sequence number of the new generation.
func (c *controller) begin(parent context.Context, selection func(*State)) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.seq++
	c.cancel = cancel
	selection(&c.state)
	c.state.Seq = c.seq
	c.state.Loading = true
	c.state.Error = ""
	c.publishLocked()
	return ctx, c.seq
}

// finish applies the result of generation seq if it is still the latest and
// returns the resulting state. A stale result is dropped and ErrStale
// returned with the current state.
func (c *controller) finish(seq uint64, apply func(*State)) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		metrics.StaleResponses.WithLabelValues(c.state.View).Inc()
		c.log.Debug("discarding stale result", "seq", seq, "latest", c.seq)
		return c.state, ErrStale
	}
	apply(&c.state)
	c.state.Loading = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.publishLocked()
	return c.state, nil
}

// Close cancels any refresh in flight.
func (c *controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func validWindow(w domain.Window) error {
	if !w.IsDashboardWindow() {
		return ErrInvalidWindow
	}
	return nil
}

func hasTicker(stocks []domain.Stock, t domain.Ticker) bool {
	for _, s := range stocks {
		if s.Ticker == t {
			return true
		}
	}
	return false
}

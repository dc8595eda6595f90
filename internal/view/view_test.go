package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stockdash/internal/domain"
	"stockdash/internal/gather"
	"stockdash/internal/gather/gathertest"
)

// heldSource ignores cancellation and answers a (ticker, window) only once
// its release channel is closed. release is keyed by domain.CacheKey and
// must not change after the first call.
type heldSource struct {
	*gathertest.Fake
	release map[string]chan struct{}
	started chan domain.Ticker
}

func (h *heldSource) PriceHistory(ctx context.Context, t domain.Ticker, w domain.Window) (domain.PriceSeries, error) {
	if h.started != nil {
		h.started <- t
	}
	if ch, ok := h.release[domain.CacheKey(t, w)]; ok {
		<-ch
	}
	return h.Fake.PriceHistory(context.Background(), t, w)
}

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) add(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func TestStockViewInitSelectsFirstStock(t *testing.T) {
	fake := gathertest.NewFake()
	v := NewStockView(fake, Options{})

	st, err := v.Init(context.Background())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if st.Ticker != "NVDA" {
		t.Errorf("Ticker = %s, want NVDA", st.Ticker)
	}
	if st.Window != 5 {
		t.Errorf("Window = %d, want 5", st.Window)
	}
	if st.Loading {
		t.Error("Loading should be false after Init")
	}
	if st.Chart == nil || len(st.Chart.Points) != 10 {
		t.Fatalf("Chart = %+v, want 10 points", st.Chart)
	}
	if st.Chart.AverageLabel != "Avg: $104.50" {
		t.Errorf("AverageLabel = %q, want %q", st.Chart.AverageLabel, "Avg: $104.50")
	}
	if len(st.Windows) != 4 {
		t.Errorf("Windows = %v, want 4 choices", st.Windows)
	}
}

func TestStockViewStockListError(t *testing.T) {
	fake := gathertest.NewFake()
	fake.Err = errors.New("boom")
	v := NewStockView(fake, Options{})

	st, err := v.Init(context.Background())
	if err == nil {
		t.Fatal("Init should fail")
	}
	if st.Error != "Failed to fetch stocks" {
		t.Errorf("Error = %q, want %q", st.Error, "Failed to fetch stocks")
	}
	if fake.HistoryCalls() != 0 {
		t.Errorf("HistoryCalls = %d, want 0", fake.HistoryCalls())
	}
}

func TestStockViewHistoryError(t *testing.T) {
	fake := gathertest.NewFake()
	fake.ErrFor = map[domain.Ticker]error{"PYPL": errors.New("down")}
	v := NewStockView(fake, Options{})
	if _, err := v.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	st, err := v.SetTicker(context.Background(), "PYPL")
	if err != nil {
		t.Fatalf("SetTicker: %v", err)
	}
	if st.Error != "Failed to fetch stock price" {
		t.Errorf("Error = %q", st.Error)
	}
	if st.Chart != nil {
		t.Error("Chart should be cleared on error")
	}
	if st.Loading {
		t.Error("Loading should be false after an error")
	}

	// A later successful selection clears the error.
	st, _ = v.SetTicker(context.Background(), "AAPL")
	if st.Error != "" || st.Chart == nil {
		t.Errorf("state after recovery = %+v", st)
	}
}

func TestStockViewRejectsInvalidSelection(t *testing.T) {
	v := NewStockView(gathertest.NewFake(), Options{})
	if _, err := v.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := v.SetWindow(context.Background(), 7); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("SetWindow(7) error = %v, want ErrInvalidWindow", err)
	}
	if _, err := v.SetTicker(context.Background(), "MSFT"); !errors.Is(err, gather.ErrUnknownTicker) {
		t.Errorf("SetTicker(MSFT) error = %v, want ErrUnknownTicker", err)
	}
	if st := v.State(); st.Ticker != "NVDA" || st.Window != 5 {
		t.Errorf("selection changed after rejected input: %s/%d", st.Ticker, st.Window)
	}
}

func TestStockViewStaleResponseDiscarded(t *testing.T) {
	fake := gathertest.NewFake()
	src := &heldSource{
		Fake:    fake,
		release: map[string]chan struct{}{"NVDA_5": make(chan struct{})},
		started: make(chan domain.Ticker, 4),
	}
	v := NewStockView(src, Options{})
	if _, err := v.loadStocks(context.Background()); err != nil {
		t.Fatalf("loadStocks: %v", err)
	}

	slow := make(chan error, 1)
	go func() {
		_, err := v.Select(context.Background(), "NVDA", 5)
		slow <- err
	}()
	<-src.started

	st, err := v.Select(context.Background(), "PYPL", 5)
	if err != nil {
		t.Fatalf("Select(PYPL): %v", err)
	}
	<-src.started
	if st.Chart == nil || st.Chart.Ticker != "PYPL" {
		t.Fatalf("chart = %+v, want PYPL", st.Chart)
	}

	close(src.release["NVDA_5"])
	if err := <-slow; !errors.Is(err, ErrStale) {
		t.Errorf("slow Select error = %v, want ErrStale", err)
	}

	final := v.State()
	if final.Ticker != "PYPL" || final.Chart == nil || final.Chart.Ticker != "PYPL" {
		t.Errorf("final state shows %s/%v, want PYPL", final.Ticker, final.Chart)
	}
	if final.Loading {
		t.Error("Loading should be false")
	}
}

func TestStockViewCancelsSupersededFetch(t *testing.T) {
	fake := gathertest.NewFake()
	fake.Delay = map[domain.Ticker]time.Duration{"NVDA": 5 * time.Second}
	v := NewStockView(fake, Options{})
	if _, err := v.loadStocks(context.Background()); err != nil {
		t.Fatalf("loadStocks: %v", err)
	}

	slow := make(chan error, 1)
	go func() {
		_, err := v.Select(context.Background(), "NVDA", 15)
		slow <- err
	}()
	for fake.CallsFor("NVDA", 15) == 0 {
		time.Sleep(time.Millisecond)
	}
	if _, err := v.Select(context.Background(), "AAPL", 15); err != nil {
		t.Fatalf("Select(AAPL): %v", err)
	}

	select {
	case err := <-slow:
		if !errors.Is(err, ErrStale) {
			t.Errorf("slow Select error = %v, want ErrStale", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("superseded fetch was not cancelled")
	}
}

func TestStockViewPublishesTransitions(t *testing.T) {
	rec := &recorder{}
	v := NewStockView(gathertest.NewFake(), Options{OnChange: rec.add})
	if _, err := v.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	states := rec.all()
	// stocks loaded, loading, loaded
	if len(states) != 3 {
		t.Fatalf("got %d transitions, want 3", len(states))
	}
	if !states[1].Loading || states[2].Loading {
		t.Errorf("loading flags = %v, %v; want true, false", states[1].Loading, states[2].Loading)
	}
	if states[1].Seq != states[2].Seq {
		t.Errorf("seq changed within one refresh: %d -> %d", states[1].Seq, states[2].Seq)
	}
}

func TestCorrelationViewInit(t *testing.T) {
	v := NewCorrelationView(gathertest.NewFake(), Options{DefaultWindow: 30})
	st, err := v.Init(context.Background())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if st.Window != 30 {
		t.Errorf("Window = %d, want 30", st.Window)
	}
	hm := st.Heatmap
	if hm == nil {
		t.Fatal("Heatmap is nil")
	}
	if len(hm.Tickers) != 3 || len(hm.Rows) != 3 {
		t.Fatalf("heatmap is %dx%d, want 3x3", len(hm.Tickers), len(hm.Rows))
	}
	// NVDA rises, PYPL falls.
	if got := hm.Rows[0][1].Value; got > -0.999 {
		t.Errorf("NVDA/PYPL = %v, want -1", got)
	}
	if got := hm.Rows[0][2].Value; got < 0.999 {
		t.Errorf("NVDA/AAPL = %v, want 1", got)
	}
	if len(hm.Names) != 3 || hm.Names[1] != "PayPal Holdings, Inc." {
		t.Errorf("Names = %q", hm.Names)
	}
}

func TestCorrelationViewAnyFailureFailsView(t *testing.T) {
	fake := gathertest.NewFake()
	fake.ErrFor = map[domain.Ticker]error{"AAPL": errors.New("down")}
	v := NewCorrelationView(fake, Options{})

	st, err := v.Init(context.Background())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if st.Heatmap != nil {
		t.Error("Heatmap should be nil when any fetch fails")
	}
	if st.Error != "Failed to fetch stock price" {
		t.Errorf("Error = %q", st.Error)
	}
}

func TestCorrelationViewStaleWindowDiscarded(t *testing.T) {
	fake := gathertest.NewFake()
	fake.Series["NVDA_60"] = gathertest.Ramp(10, 100, -1)
	hold := make(chan struct{})
	src := &heldSource{
		Fake:    fake,
		release: map[string]chan struct{}{"AAPL_15": hold},
	}
	v := NewCorrelationView(src, Options{})
	if _, err := v.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	slow := make(chan error, 1)
	go func() {
		_, err := v.SetWindow(context.Background(), 15)
		slow <- err
	}()
	for fake.CallsFor("AAPL", 15) == 0 {
		time.Sleep(time.Millisecond)
	}

	st, err := v.SetWindow(context.Background(), 60)
	if err != nil {
		t.Fatalf("SetWindow(60): %v", err)
	}
	close(hold)
	if err := <-slow; !errors.Is(err, ErrStale) {
		t.Errorf("slow SetWindow error = %v, want ErrStale", err)
	}
	final := v.State()
	if final.Window != 60 || final.Heatmap != st.Heatmap {
		t.Errorf("final state window %d, want the 60 minute heatmap", final.Window)
	}
	if got := final.Heatmap.Rows[0][1].Value; got < 0.999 {
		t.Errorf("NVDA/PYPL over 60m = %v, want 1", got)
	}
}

package domain

import (
	"testing"
	"time"
)

func TestTypesExist(t *testing.T) {
	// Verify PricePoint can be instantiated with zero values.
	p := PricePoint{}
	if p.Price != 0 {
		t.Error("expected zero Price for zero-value PricePoint")
	}
	if !p.Timestamp.IsZero() {
		t.Error("expected zero Timestamp for zero-value PricePoint")
	}
	if p.Volume != nil {
		t.Error("expected nil Volume for zero-value PricePoint")
	}

	vol := 1200.0
	series := PriceSeries{
		{Price: 10, Timestamp: time.Date(2025, 5, 8, 4, 0, 0, 0, time.UTC)},
		{Price: 11.5, Timestamp: time.Date(2025, 5, 8, 4, 1, 0, 0, time.UTC), Volume: &vol},
	}
	prices := series.Prices()
	if len(prices) != 2 || prices[0] != 10 || prices[1] != 11.5 {
		t.Errorf("Prices() = %v, want [10 11.5]", prices)
	}

	set := PriceSeriesSet{
		Stocks: []Stock{{Name: "Nvidia Corporation", Ticker: "NVDA"}, {Name: "PayPal Holdings, Inc.", Ticker: "PYPL"}},
		Series: map[Ticker]PriceSeries{"NVDA": series},
	}
	tickers := set.Tickers()
	if len(tickers) != 2 || tickers[0] != "NVDA" || tickers[1] != "PYPL" {
		t.Errorf("Tickers() = %v, want [NVDA PYPL]", tickers)
	}
}

func TestWindowKey(t *testing.T) {
	tests := []struct {
		w     Window
		key   string
		label string
	}{
		{WindowAll, "all", "All history"},
		{5, "5", "Last 5 minutes"},
		{60, "60", "Last 60 minutes"},
	}
	for _, tt := range tests {
		if got := tt.w.Key(); got != tt.key {
			t.Errorf("Window(%d).Key() = %q, want %q", tt.w, got, tt.key)
		}
		if got := tt.w.Label(); got != tt.label {
			t.Errorf("Window(%d).Label() = %q, want %q", tt.w, got, tt.label)
		}
	}

	if got := CacheKey("AAPL", 15); got != "AAPL_15" {
		t.Errorf("CacheKey(AAPL, 15) = %q, want %q", got, "AAPL_15")
	}
	if got := CacheKey("AAPL", WindowAll); got != "AAPL_all" {
		t.Errorf("CacheKey(AAPL, all) = %q, want %q", got, "AAPL_all")
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in      string
		want    Window
		wantErr bool
	}{
		{"", WindowAll, false},
		{"all", WindowAll, false},
		{"30", 30, false},
		{" 5 ", 5, false},
		{"-1", 0, true},
		{"ten", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseWindow(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseWindow(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseWindow(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}

	if !Window(15).IsDashboardWindow() {
		t.Error("15 should be a dashboard window")
	}
	if Window(10).IsDashboardWindow() {
		t.Error("10 should not be a dashboard window")
	}
}

func TestNewMatrix(t *testing.T) {
	m := NewMatrix([]Ticker{"A", "B", "C"}, 7)
	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}
	if m.AlignedLength != 7 {
		t.Errorf("AlignedLength = %d, want 7", m.AlignedLength)
	}
	for i := range m.Values {
		if len(m.Values[i]) != 3 || len(m.Undefined[i]) != 3 {
			t.Errorf("row %d has %d values, %d flags; want 3, 3", i, len(m.Values[i]), len(m.Undefined[i]))
		}
	}

	empty := NewMatrix(nil, 0)
	if empty.Len() != 0 || len(empty.Values) != 0 {
		t.Errorf("NewMatrix(nil) = %+v, want empty", empty)
	}
}

package dashboard

import (
	"math"
	"strings"
	"testing"
	"time"

	"stockdash/internal/domain"
)

func TestFormatCoefficient(t *testing.T) {
	tests := []struct {
		c    float64
		want string
	}{
		{0.5234, "0.52"},
		{1, "1.00"},
		{-1, "-1.00"},
		{-0.001, "0.00"},
		{0.145, "0.14"},
		{-0.145, "-0.14"},
		{0.125, "0.13"},
		{-0.125, "-0.13"},
		{0.375, "0.38"},
		{0.99999, "1.00"},
		{math.NaN(), "n/a"},
	}
	for _, tt := range tests {
		if got := FormatCoefficient(tt.c); got != tt.want {
			t.Errorf("FormatCoefficient(%v) = %q, want %q", tt.c, got, tt.want)
		}
	}
}

func TestFormatPriceAndVolume(t *testing.T) {
	if got := FormatPrice(231.95); got != "$231.95" {
		t.Errorf("FormatPrice(231.95) = %q, want %q", got, "$231.95")
	}
	if got := FormatPrice(12); got != "$12.00" {
		t.Errorf("FormatPrice(12) = %q, want %q", got, "$12.00")
	}
	if got := FormatPrice(math.Inf(1)); got != "-" {
		t.Errorf("FormatPrice(+Inf) = %q, want %q", got, "-")
	}

	v := 1234567.0
	if got := FormatVolume(&v); got != "1,234,567" {
		t.Errorf("FormatVolume = %q, want %q", got, "1,234,567")
	}
	if got := FormatVolume(nil); got != "-" {
		t.Errorf("FormatVolume(nil) = %q, want %q", got, "-")
	}

	if got := FormatCompact(950); got != "950" {
		t.Errorf("FormatCompact(950) = %q, want %q", got, "950")
	}
	if got := FormatCompact(1_200_000); got != "1.2M" {
		t.Errorf("FormatCompact(1.2e6) = %q, want %q", got, "1.2M")
	}
}

func TestNewHeatmap(t *testing.T) {
	m := domain.NewMatrix([]domain.Ticker{"NVDA", "PYPL", "FLAT"}, 5)
	m.Values = [][]float64{
		{1, -0.8, 0},
		{-0.8, 1, 0},
		{0, 0, 1},
	}
	m.Undefined[0][2], m.Undefined[2][0] = true, true

	h := NewHeatmap(m, map[domain.Ticker]string{"NVDA": "Nvidia Corporation"})
	if len(h.Rows) != 3 || len(h.Rows[0]) != 3 {
		t.Fatalf("heatmap is %dx%d, want 3x3", len(h.Rows), len(h.Rows[0]))
	}
	if h.Names[0] != "Nvidia Corporation" || h.Names[1] != "PYPL" {
		t.Errorf("Names = %v, want display name then ticker fallback", h.Names)
	}

	cell := h.Rows[0][1]
	if cell.Text != "-0.80" {
		t.Errorf("cell text = %q, want %q", cell.Text, "-0.80")
	}
	if cell.Tooltip != "Correlation: -0.80" {
		t.Errorf("cell tooltip = %q, want %q", cell.Tooltip, "Correlation: -0.80")
	}
	if cell.Foreground != TextLight {
		t.Errorf("cell foreground = %q, want %q", cell.Foreground, TextLight)
	}
	if cell.BackgroundCSS() != "rgb(51,51,255)" {
		t.Errorf("cell background = %q, want %q", cell.BackgroundCSS(), "rgb(51,51,255)")
	}

	diag := h.Rows[1][1]
	if diag.Text != "1.00" || diag.Background != (RGB{255, 0, 0}) {
		t.Errorf("diagonal = %+v, want 1.00 on red", diag)
	}

	undef := h.Rows[2][0]
	if !undef.Undefined || undef.Text != "n/a" || undef.Tooltip != "Correlation: undefined" {
		t.Errorf("undefined cell = %+v", undef)
	}
	if undef.Background != (RGB{255, 255, 255}) {
		t.Errorf("undefined cell background = %+v, want white", undef.Background)
	}
	if len(h.Legend) != 3 {
		t.Errorf("legend has %d swatches, want 3", len(h.Legend))
	}
}

func TestNewHeatmapEmpty(t *testing.T) {
	h := NewHeatmap(domain.NewMatrix(nil, 0), nil)
	if !h.Empty() {
		t.Error("heatmap of empty matrix should be empty")
	}
	if h.Names != nil {
		t.Errorf("Names = %v, want nil", h.Names)
	}
}

func TestNewChart(t *testing.T) {
	base := time.Date(2025, 5, 8, 4, 0, 0, 0, time.UTC)
	vol := 1500.0
	series := domain.PriceSeries{
		{Price: 100, Timestamp: base},
		{Price: 110, Timestamp: base.Add(time.Minute), Volume: &vol},
		{Price: 90, Timestamp: base.Add(2 * time.Minute)},
		{Price: 100, Timestamp: base.Add(3 * time.Minute)},
	}
	c := NewChart("NVDA", 15, series, time.UTC)

	if c.Empty() {
		t.Fatal("chart should not be empty")
	}
	if c.Average != 100 {
		t.Errorf("Average = %v, want 100", c.Average)
	}
	if c.AverageLabel != "Avg: $100.00" {
		t.Errorf("AverageLabel = %q, want %q", c.AverageLabel, "Avg: $100.00")
	}
	if len(c.Points) != 4 {
		t.Fatalf("got %d points, want 4", len(c.Points))
	}
	if c.Points[0].X != c.PlotLeft() || c.Points[3].X != c.PlotRight() {
		t.Errorf("x range = [%v, %v], want [%v, %v]", c.Points[0].X, c.Points[3].X, c.PlotLeft(), c.PlotRight())
	}
	// Higher prices sit higher on the canvas (smaller y).
	if !(c.Points[1].Y < c.Points[0].Y && c.Points[0].Y < c.Points[2].Y) {
		t.Errorf("y ordering wrong: %v %v %v", c.Points[0].Y, c.Points[1].Y, c.Points[2].Y)
	}
	if math.Abs(c.AverageY-c.Points[0].Y) > 1e-9 {
		t.Errorf("AverageY = %v, want %v", c.AverageY, c.Points[0].Y)
	}
	if !strings.HasPrefix(c.Path, "M") || strings.Count(c.Path, "L") != 3 {
		t.Errorf("Path = %q, want M + 3 L segments", c.Path)
	}
	if want := "Time: 04:01:00\nPrice: $110.00\nVolume: 1,500"; c.Points[1].Title != want {
		t.Errorf("Title = %q, want %q", c.Points[1].Title, want)
	}
	if len(c.YTicks) != 5 {
		t.Errorf("got %d y ticks, want 5", len(c.YTicks))
	}
	if len(c.XTicks) == 0 || c.XTicks[0].Label != "04:00:00" {
		t.Errorf("XTicks = %+v", c.XTicks)
	}
}

func TestNewChartEdgeCases(t *testing.T) {
	c := NewChart("NVDA", 5, nil, time.UTC)
	if !c.Empty() || c.AverageLabel != "" {
		t.Errorf("empty chart = %+v", c)
	}

	flat := domain.PriceSeries{{Price: 42, Timestamp: time.Unix(0, 0)}}
	c = NewChart("NVDA", 5, flat, time.UTC)
	if len(c.Points) != 1 {
		t.Fatalf("got %d points, want 1", len(c.Points))
	}
	if math.IsNaN(c.Points[0].Y) || math.IsNaN(c.Points[0].X) {
		t.Errorf("single point has NaN coordinates: %+v", c.Points[0])
	}
}

package dashboard

import (
	"fmt"
	"strings"
	"time"

	"stockdash/internal/domain"
	"stockdash/internal/engine"
)

// Default chart geometry in SVG user units.
const (
	ChartWidth  = 800
	ChartHeight = 400

	padLeft   = 70
	padRight  = 20
	padTop    = 20
	padBottom = 40

	maxXTicks = 6
	yTicks    = 5
)

// ChartPoint is one plotted sample.
type ChartPoint struct {
	Time   time.Time `json:"time"`
	Price  float64   `json:"price"`
	Volume *float64  `json:"volume,omitempty"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	Title  string    `json:"title"`
}

// AxisTick is a labeled position on an axis.
type AxisTick struct {
	Pos   float64 `json:"pos"`
	Label string  `json:"label"`
}

// Chart is the display model of a single stock's price history: a line over
// time plus a horizontal reference line at the average price.
type Chart struct {
	Ticker       domain.Ticker `json:"ticker"`
	Window       domain.Window `json:"minutes"`
	Points       []ChartPoint  `json:"points"`
	Average      float64       `json:"average"`
	AverageLabel string        `json:"averageLabel"`
	AverageY     float64       `json:"averageY"`
	Path         string        `json:"path"`
	XTicks       []AxisTick    `json:"xTicks"`
	YTicks       []AxisTick    `json:"yTicks"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
}

// Empty reports whether the chart has no samples ("No data available").
func (c Chart) Empty() bool { return len(c.Points) == 0 }

// PlotLeft and PlotRight bound the plotting area horizontally.
func (c Chart) PlotLeft() float64  { return padLeft }
func (c Chart) PlotRight() float64 { return float64(c.Width - padRight) }

// PlotBottom is the y coordinate of the x axis.
func (c Chart) PlotBottom() float64 { return float64(c.Height - padBottom) }

// NewChart lays out series on a width x height canvas. Samples are spaced
// evenly in delivered order; the y domain is the price range padded by 5%.
func NewChart(ticker domain.Ticker, window domain.Window, series domain.PriceSeries, loc *time.Location) Chart {
	c := Chart{
		Ticker: ticker,
		Window: window,
		Points: make([]ChartPoint, 0, len(series)),
		Width:  ChartWidth,
		Height: ChartHeight,
	}
	if len(series) == 0 {
		return c
	}

	c.Average = engine.AveragePrice(series)
	c.AverageLabel = "Avg: " + FormatPrice(c.Average)

	lo, hi := series[0].Price, series[0].Price
	for _, p := range series {
		lo = min(lo, p.Price)
		hi = max(hi, p.Price)
	}
	if hi == lo {
		lo, hi = lo-1, hi+1
	} else {
		pad := (hi - lo) * 0.05
		lo, hi = lo-pad, hi+pad
	}

	plotW := float64(c.Width - padLeft - padRight)
	plotH := float64(c.Height - padTop - padBottom)
	xAt := func(i int) float64 {
		if len(series) == 1 {
			return padLeft + plotW/2
		}
		return padLeft + plotW*float64(i)/float64(len(series)-1)
	}
	yAt := func(v float64) float64 {
		return padTop + plotH*(hi-v)/(hi-lo)
	}

	var path strings.Builder
	for i, p := range series {
		pt := ChartPoint{
			Time:   p.Timestamp,
			Price:  p.Price,
			Volume: p.Volume,
			X:      xAt(i),
			Y:      yAt(p.Price),
		}
		pt.Title = fmt.Sprintf("Time: %s\nPrice: %s", FormatTime(p.Timestamp, loc), FormatPrice(p.Price))
		if p.Volume != nil {
			pt.Title += "\nVolume: " + FormatVolume(p.Volume)
		}
		c.Points = append(c.Points, pt)

		if i == 0 {
			fmt.Fprintf(&path, "M%.1f,%.1f", pt.X, pt.Y)
		} else {
			fmt.Fprintf(&path, " L%.1f,%.1f", pt.X, pt.Y)
		}
	}
	c.Path = path.String()
	c.AverageY = yAt(c.Average)

	step := max(1, (len(series)+maxXTicks-1)/maxXTicks)
	for i := 0; i < len(series); i += step {
		c.XTicks = append(c.XTicks, AxisTick{Pos: xAt(i), Label: FormatTime(series[i].Timestamp, loc)})
	}
	for k := 0; k < yTicks; k++ {
		v := lo + (hi-lo)*float64(k)/float64(yTicks-1)
		c.YTicks = append(c.YTicks, AxisTick{Pos: yAt(v), Label: FormatPrice(v)})
	}
	return c
}

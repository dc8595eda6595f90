// Package dashboard turns price series and correlation matrices into the
// display models used by the HTML pages, the WebSocket channel and the CLI.
package dashboard

import (
	"fmt"
	"math"
)

// RGB is an 8-bit-per-channel color.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// CSS returns the color as rgb(r,g,b).
func (c RGB) CSS() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

// Hex returns the color as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Text colors used on heatmap cells.
const (
	TextLight = "white"
	TextDark  = "black"
)

// CorrelationToColor maps a coefficient in [-1, 1] onto a diverging scale:
// blue at -1, white at 0, red at +1. Inputs outside the range are clamped;
// NaN maps to white.
func CorrelationToColor(c float64) RGB {
	if math.IsNaN(c) {
		c = 0
	}
	c = math.Max(-1, math.Min(1, c))

	red := 255.0
	if c <= 0 {
		red = math.Round(255 * (1 + c))
	}
	green := math.Round(255 * (1 - math.Abs(c)))
	blue := 255.0
	if c >= 0 {
		blue = math.Round(255 * (1 - c))
	}
	return RGB{R: channel(red), G: channel(green), B: channel(blue)}
}

func channel(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// TextColor picks the label color for a cell: light on strongly colored
// cells (|c| > 0.5), dark otherwise.
func TextColor(c float64) string {
	if math.Abs(c) > 0.5 {
		return TextLight
	}
	return TextDark
}

// LegendEntry is one swatch of the heatmap legend.
type LegendEntry struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Color RGB     `json:"color"`
}

// Legend returns the fixed three-swatch legend.
func Legend() []LegendEntry {
	return []LegendEntry{
		{Label: "Strong Negative", Value: -1, Color: CorrelationToColor(-1)},
		{Label: "Zero", Value: 0, Color: CorrelationToColor(0)},
		{Label: "Strong Positive", Value: 1, Color: CorrelationToColor(1)},
	}
}

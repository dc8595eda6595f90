package dashboard

import (
	"stockdash/internal/domain"
)

// HeatmapCell is one rendered coefficient.
type HeatmapCell struct {
	Row        domain.Ticker `json:"row"`
	Col        domain.Ticker `json:"col"`
	Value      float64       `json:"value"`
	Undefined  bool          `json:"undefined,omitempty"`
	Text       string        `json:"text"`
	Tooltip    string        `json:"tooltip"`
	Background RGB           `json:"background"`
	Foreground string        `json:"foreground"`
}

// BackgroundCSS returns the cell background as a CSS color.
func (c HeatmapCell) BackgroundCSS() string { return c.Background.CSS() }

// Heatmap is the display model of a correlation matrix.
type Heatmap struct {
	Tickers       []domain.Ticker `json:"tickers"`
	Names         []string        `json:"names,omitempty"`
	Rows          [][]HeatmapCell `json:"rows"`
	Legend        []LegendEntry   `json:"legend"`
	AlignedLength int             `json:"alignedLength"`
}

// Empty reports whether there is nothing to draw.
func (h Heatmap) Empty() bool { return len(h.Tickers) == 0 }

// CellTooltip returns the hover text for a coefficient.
func CellTooltip(c float64, undefined bool) string {
	if undefined {
		return "Correlation: undefined"
	}
	return "Correlation: " + FormatCoefficient(c)
}

// NewHeatmap builds the heatmap model for m. names, when given, supplies a
// display name per ticker; unknown tickers fall back to the symbol.
func NewHeatmap(m domain.Matrix, names map[domain.Ticker]string) Heatmap {
	h := Heatmap{
		Tickers:       m.Tickers,
		Rows:          make([][]HeatmapCell, m.Len()),
		Legend:        Legend(),
		AlignedLength: m.AlignedLength,
	}
	if names != nil {
		h.Names = make([]string, m.Len())
		for i, t := range m.Tickers {
			if n, ok := names[t]; ok && n != "" {
				h.Names[i] = n
			} else {
				h.Names[i] = string(t)
			}
		}
	}

	for i, row := range m.Tickers {
		cells := make([]HeatmapCell, m.Len())
		for j, col := range m.Tickers {
			v := m.Values[i][j]
			undefined := m.Undefined[i][j]
			text := FormatCoefficient(v)
			if undefined {
				text = "n/a"
			}
			cells[j] = HeatmapCell{
				Row:        row,
				Col:        col,
				Value:      v,
				Undefined:  undefined,
				Text:       text,
				Tooltip:    CellTooltip(v, undefined),
				Background: CorrelationToColor(v),
				Foreground: TextColor(v),
			}
		}
		h.Rows[i] = cells
	}
	return h
}

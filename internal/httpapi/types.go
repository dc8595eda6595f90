// Package httpapi serves the dashboard over HTTP: the two HTML views, a JSON
// API with the same data, and the operational endpoints.
package httpapi

import (
	"stockdash/internal/dashboard"
	"stockdash/internal/domain"
	"stockdash/internal/engine"
)

// StocksResponse lists the tracked universe in upstream order.
type StocksResponse struct {
	Stocks []domain.Stock `json:"stocks"`
}

// HistoryResponse is one stock's price history over a window.
type HistoryResponse struct {
	Ticker       domain.Ticker      `json:"ticker"`
	Minutes      int                `json:"minutes" doc:"Window in minutes; 0 means full history"`
	Label        string             `json:"label"`
	Count        int                `json:"count"`
	Average      float64            `json:"average"`
	AverageLabel string             `json:"averageLabel"`
	Points       domain.PriceSeries `json:"points"`
}

// CorrelationResponse is a correlation matrix with its rendering colors.
type CorrelationResponse struct {
	Minutes       int                     `json:"minutes"`
	Tickers       []domain.Ticker         `json:"tickers"`
	Names         []string                `json:"names"`
	Values        [][]float64             `json:"values"`
	Undefined     [][]bool                `json:"undefined"`
	AlignedLength int                     `json:"alignedLength"`
	Colors        [][]string              `json:"colors" doc:"Cell background as #rrggbb"`
	TextColors    [][]string              `json:"textColors"`
	Legend        []dashboard.LegendEntry `json:"legend"`
}

// SnapshotsResponse lists recorded snapshots, newest first.
type SnapshotsResponse struct {
	Snapshots []domain.Snapshot `json:"snapshots"`
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status  string `json:"status"`
	Source  string `json:"source"`
	Version string `json:"version"`
}

func historyResponse(ticker domain.Ticker, window domain.Window, series domain.PriceSeries) HistoryResponse {
	if series == nil {
		series = domain.PriceSeries{}
	}
	avg := engine.AveragePrice(series)
	return HistoryResponse{
		Ticker:       ticker,
		Minutes:      window.Minutes(),
		Label:        window.Label(),
		Count:        len(series),
		Average:      avg,
		AverageLabel: "Avg: " + dashboard.FormatPrice(avg),
		Points:       series,
	}
}

func correlationResponse(window domain.Window, m domain.Matrix, names map[domain.Ticker]string) CorrelationResponse {
	hm := dashboard.NewHeatmap(m, names)
	resp := CorrelationResponse{
		Minutes:       window.Minutes(),
		Tickers:       m.Tickers,
		Names:         hm.Names,
		Values:        m.Values,
		Undefined:     m.Undefined,
		AlignedLength: m.AlignedLength,
		Colors:        make([][]string, len(hm.Rows)),
		TextColors:    make([][]string, len(hm.Rows)),
		Legend:        hm.Legend,
	}
	for i, row := range hm.Rows {
		resp.Colors[i] = make([]string, len(row))
		resp.TextColors[i] = make([]string, len(row))
		for j, c := range row {
			resp.Colors[i][j] = c.Background.Hex()
			resp.TextColors[i][j] = c.Foreground
		}
	}
	return resp
}

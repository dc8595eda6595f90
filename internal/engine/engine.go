// Package engine aligns price series and computes the pairwise Pearson
// correlation matrix rendered by the heatmap.
package engine

import (
	"stockdash/internal/domain"
)

// Align truncates every series named in order to the length of the shortest
// one and returns their price columns in order. A ticker missing from series
// counts as an empty series, which makes every aligned column empty.
// Alignment is positional: index i of each column is the i-th delivered
// sample, regardless of timestamps.
func Align(series map[domain.Ticker]domain.PriceSeries, order []domain.Ticker) ([][]float64, int) {
	if len(order) == 0 {
		return nil, 0
	}

	minLength := -1
	for _, t := range order {
		n := len(series[t])
		if minLength < 0 || n < minLength {
			minLength = n
		}
	}

	aligned := make([][]float64, len(order))
	for i, t := range order {
		s := series[t]
		col := make([]float64, minLength)
		for k := 0; k < minLength; k++ {
			col[k] = s[k].Price
		}
		aligned[i] = col
	}
	return aligned, minLength
}

// ComputeCorrelationMatrix returns the len(order)-square matrix of pairwise
// coefficients. The diagonal is exactly 1; pairs involving an empty aligned
// series are 0. Each pair is computed once and mirrored, which matches
// computing it in either order because the summation order is the same.
func ComputeCorrelationMatrix(series map[domain.Ticker]domain.PriceSeries, order []domain.Ticker) domain.Matrix {
	aligned, n := Align(series, order)
	m := domain.NewMatrix(order, n)

	for i := range order {
		m.Values[i][i] = 1
		for j := i + 1; j < len(order); j++ {
			r, undefined := Coefficient(aligned[i], aligned[j])
			m.Values[i][j], m.Values[j][i] = r, r
			m.Undefined[i][j], m.Undefined[j][i] = undefined, undefined
		}
	}
	return m
}

// ComputeSet is ComputeCorrelationMatrix over a PriceSeriesSet in stock order.
func ComputeSet(set domain.PriceSeriesSet) domain.Matrix {
	return ComputeCorrelationMatrix(set.Series, set.Tickers())
}

// UndefinedCount returns the number of off-diagonal cells flagged undefined,
// counting each unordered pair once.
func UndefinedCount(m domain.Matrix) int {
	n := 0
	for i := range m.Undefined {
		for j := i + 1; j < len(m.Undefined[i]); j++ {
			if m.Undefined[i][j] {
				n++
			}
		}
	}
	return n
}

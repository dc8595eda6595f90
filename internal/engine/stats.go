package engine

import (
	"math"

	"stockdash/internal/domain"
)

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Covariance returns the sample covariance of x and y with Bessel's
// correction (divisor n-1). Only the first min(len(x), len(y)) samples are
// used. A single sample yields NaN.
func Covariance(x, y []float64) float64 {
	n := min(len(x), len(y))
	x, y = x[:n], y[:n]
	mx, my := Mean(x), Mean(y)
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += (x[i] - mx) * (y[i] - my)
	}
	return sum / float64(n-1)
}

// StdDev returns the sample standard deviation of xs (divisor n-1).
func StdDev(xs []float64) float64 {
	m := Mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

// Pearson returns the raw Pearson coefficient of x and y. Empty input yields
// 0. The result may be NaN or ±Inf when either series has zero variance or
// only one sample; see Coefficient for the sanitized form.
func Pearson(x, y []float64) float64 {
	n := min(len(x), len(y))
	if n == 0 {
		return 0
	}
	x, y = x[:n], y[:n]
	return Covariance(x, y) / (StdDev(x) * StdDev(y))
}

// Coefficient returns the Pearson coefficient clamped to [-1, 1]. When
// either series is flat, or the raw value is not finite, it returns 0 and
// undefined=true.
func Coefficient(x, y []float64) (r float64, undefined bool) {
	n := min(len(x), len(y))
	if n == 0 {
		return 0, false
	}
	// A flat series at a price like 231.45 has a mean one ulp off its
	// samples, so its variance comes out tiny but nonzero.
	if flat(x[:n]) || flat(y[:n]) {
		return 0, true
	}
	r = Pearson(x, y)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, true
	}
	return math.Max(-1, math.Min(1, r)), false
}

// flat reports whether every value equals the first.
func flat(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}

// AveragePrice returns the mean price of a series, or 0 when it is empty.
func AveragePrice(s domain.PriceSeries) float64 {
	return Mean(s.Prices())
}

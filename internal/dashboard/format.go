package dashboard

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// FormatPrice formats a price as $X.XX, or "-" when it is not a finite number.
func FormatPrice(p float64) string {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return "-"
	}
	return "$" + fixed2(p)
}

// fixed2 rounds the exact binary value of v to two decimals, halves away
// from zero. 0.145 is stored as 0.14499999... and prints 0.14.
func fixed2(v float64) string {
	// 30 digits keep every float64 of dashboard magnitude on the correct
	// side of a .xx5 boundary.
	exact := decimal.RequireFromString(strconv.FormatFloat(v, 'f', 30, 64))
	return exact.StringFixed(2)
}

// FormatCoefficient formats a correlation coefficient with two decimals.
// Negative zero is printed as 0.00.
func FormatCoefficient(c float64) string {
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return "n/a"
	}
	s := fixed2(c)
	if s == "-0.00" {
		return "0.00"
	}
	return s
}

// FormatVolume formats an optional volume with comma separators, or "-".
func FormatVolume(v *float64) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return "-"
	}
	return humanize.Comma(int64(math.Round(*v)))
}

// FormatCompact formats a large value with an SI suffix, e.g. 1.2M.
func FormatCompact(v float64) string {
	if math.Abs(v) < 1e3 {
		return fmt.Sprintf("%.0f", v)
	}
	value, prefix := humanize.ComputeSI(v)
	return fmt.Sprintf("%.1f%s", value, prefix)
}

// FormatTime formats a sample timestamp as wall-clock time in loc.
func FormatTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("15:04:05")
}

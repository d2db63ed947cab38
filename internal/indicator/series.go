package indicator

import (
	"math"
	"strconv"
	"strings"
)

// Series is a computed indicator line, index-aligned 1:1 with the bar
// sequence it was evaluated against. Missing values are NaN; the JSON
// encoding turns them into null so charts render gaps instead of
// zeroes.
type Series []float64

// ComputeSeries evaluates a compiled expression once per bar index.
// Each index is evaluated independently, so the result is a pure
// function of (expression, bars).
func ComputeSeries(expr Expr, bars []Bar) Series {
	out := make(Series, len(bars))
	for i := range bars {
		out[i] = expr.Eval(bars, i)
	}
	return out
}

// ValidCount returns the number of non-NaN values in the series.
func (s Series) ValidCount() int {
	n := 0
	for _, v := range s {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// MarshalJSON encodes the series as a JSON array with null for NaN.
func (s Series) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			b.WriteString("null")
		} else {
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
	b.WriteByte(']')
	return []byte(b.String()), nil
}

package indicator

import "time"

// Bar represents one OHLCV sample at a point in time.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Field identifies one of the OHLCV columns a formula can reference.
type Field int

const (
	FieldOpen Field = iota
	FieldHigh
	FieldLow
	FieldClose
	FieldVolume
)

var fieldNames = map[string]Field{
	"OPEN":   FieldOpen,
	"HIGH":   FieldHigh,
	"LOW":    FieldLow,
	"CLOSE":  FieldClose,
	"VOLUME": FieldVolume,
}

// String returns the canonical (uppercase) field name.
func (f Field) String() string {
	switch f {
	case FieldOpen:
		return "OPEN"
	case FieldHigh:
		return "HIGH"
	case FieldLow:
		return "LOW"
	case FieldClose:
		return "CLOSE"
	case FieldVolume:
		return "VOLUME"
	}
	return "UNKNOWN"
}

// fieldAt resolves a field value at bar index i. Out-of-range indexes
// collapse to NaN rather than panicking; the evaluator treats NaN as
// "no value" throughout.
func fieldAt(bars []Bar, f Field, i int) float64 {
	if i < 0 || i >= len(bars) {
		return nan
	}
	switch f {
	case FieldOpen:
		return bars[i].Open
	case FieldHigh:
		return bars[i].High
	case FieldLow:
		return bars[i].Low
	case FieldClose:
		return bars[i].Close
	case FieldVolume:
		return bars[i].Volume
	}
	return nan
}

package indicator

import (
	"math"
	"strconv"
)

// Trend is the short-term direction of a computed series.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// Signal is the trading signal derived from a computed series.
type Signal string

const (
	SignalBuy     Signal = "buy"
	SignalSell    Signal = "sell"
	SignalNeutral Signal = "neutral"
)

// analysisWindow caps how many trailing valid values feed the
// classifier statistics.
const analysisWindow = 50

// NullableFloat encodes NaN as JSON null.
type NullableFloat float64

func (f NullableFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

// Description is a locale-agnostic message: a key plus numeric
// parameters. Translation happens in the consuming UI layer.
type Description struct {
	Key    string             `json:"key"`
	Params map[string]float64 `json:"params,omitempty"`
}

// Analysis summarizes the trailing window of a computed series for the
// results panel.
type Analysis struct {
	CurrentValue  NullableFloat `json:"current_value"`
	PreviousValue NullableFloat `json:"previous_value"`
	MinValue      NullableFloat `json:"min_value"`
	MaxValue      NullableFloat `json:"max_value"`
	Trend         Trend         `json:"trend"`
	Signal        Signal        `json:"signal"`
	Strength      int           `json:"strength"`
	Description   Description   `json:"description"`
}

// DiagnosticReason explains why an analysis could not be produced.
type DiagnosticReason string

const (
	// ReasonInsufficientHistory: the formula's declared MA/EMA window
	// is longer than the available bar sequence.
	ReasonInsufficientHistory DiagnosticReason = "insufficient_history"
	// ReasonNoValues: the series holds no valid values for any other
	// reason.
	ReasonNoValues DiagnosticReason = "no_values"
)

// Diagnostic is reported instead of an Analysis when the series has no
// valid values. It is messaging, not an error: evaluation already
// degraded to an all-null series.
type Diagnostic struct {
	Reason    DiagnosticReason `json:"reason"`
	Required  int              `json:"required,omitempty"`
	Available int              `json:"available,omitempty"`
}

// signalRule pairs a predicate with its outcome. Rules are evaluated
// top to bottom; the first match wins.
type signalRule struct {
	match       func(positionPct float64, trend Trend) bool
	signal      Signal
	strength    int
	description string
}

var signalRules = []signalRule{
	{
		match:       func(pos float64, t Trend) bool { return pos < 20 && t == TrendUp },
		signal:      SignalBuy,
		strength:    7,
		description: "near_recent_low_and_rising",
	},
	{
		match:       func(pos float64, t Trend) bool { return pos > 80 && t == TrendDown },
		signal:      SignalSell,
		strength:    -7,
		description: "near_recent_high_and_falling",
	},
	{
		match:       func(pos float64, t Trend) bool { return pos < 30 && t == TrendUp },
		signal:      SignalBuy,
		strength:    5,
		description: "low_and_rising",
	},
	{
		match:       func(pos float64, t Trend) bool { return pos > 70 && t == TrendDown },
		signal:      SignalSell,
		strength:    -5,
		description: "high_and_falling",
	},
	{
		match:       func(pos float64, t Trend) bool { return t == TrendUp },
		signal:      SignalBuy,
		strength:    3,
		description: "rising",
	},
	{
		match:       func(pos float64, t Trend) bool { return t == TrendDown },
		signal:      SignalSell,
		strength:    -3,
		description: "falling",
	},
	{
		match:       func(pos float64, t Trend) bool { return true },
		signal:      SignalNeutral,
		strength:    0,
		description: "flat",
	},
}

// Analyze classifies a computed series. When the series holds no valid
// values it returns a Diagnostic instead, distinguishing a declared
// lookback longer than the history (via the compiled expression's
// static window) from any other empty result.
func Analyze(expr Expr, series Series) (*Analysis, *Diagnostic) {
	window := trailingValid(series, analysisWindow)
	if len(window) == 0 {
		if required := expr.Lookback(); required > len(series) {
			return nil, &Diagnostic{
				Reason:    ReasonInsufficientHistory,
				Required:  required,
				Available: len(series),
			}
		}
		return nil, &Diagnostic{Reason: ReasonNoValues}
	}

	current := window[len(window)-1]
	previous := nan
	if len(window) > 1 {
		previous = window[len(window)-2]
	}

	min, max := window[0], window[0]
	for _, v := range window[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	trend := classifyTrend(current, previous)

	positionPct := 0.0
	if max != min {
		positionPct = (current - min) / (max - min) * 100
	}

	for _, rule := range signalRules {
		if !rule.match(positionPct, trend) {
			continue
		}
		return &Analysis{
			CurrentValue:  NullableFloat(current),
			PreviousValue: NullableFloat(previous),
			MinValue:      NullableFloat(min),
			MaxValue:      NullableFloat(max),
			Trend:         trend,
			Signal:        rule.signal,
			Strength:      rule.strength,
			Description: Description{
				Key: rule.description,
				Params: map[string]float64{
					"position_pct": positionPct,
				},
			},
		}, nil
	}

	// Unreachable: the last rule always matches.
	return nil, &Diagnostic{Reason: ReasonNoValues}
}

func classifyTrend(current, previous float64) Trend {
	if math.IsNaN(previous) || previous == 0 {
		return TrendNeutral
	}
	changePct := (current - previous) / math.Abs(previous) * 100
	switch {
	case changePct > 1:
		return TrendUp
	case changePct < -1:
		return TrendDown
	default:
		return TrendNeutral
	}
}

// trailingValid collects the most recent limit non-NaN values in
// series order.
func trailingValid(series Series, limit int) []float64 {
	var reversed []float64
	for i := len(series) - 1; i >= 0 && len(reversed) < limit; i-- {
		if !math.IsNaN(series[i]) {
			reversed = append(reversed, series[i])
		}
	}
	out := make([]float64, len(reversed))
	for i, v := range reversed {
		out[len(reversed)-1-i] = v
	}
	return out
}

package indicator

import (
	"math"
	"testing"
	"time"
)

// Helper to build a bar sequence from close prices; other fields are
// derived so field-specific tests have distinct values.
func barsFromCloses(closes []float64) []Bar {
	bars := make([]Bar, len(closes))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   c - 1,
			High:   c + 2,
			Low:    c - 2,
			Close:  c,
			Volume: float64(1000 + i),
		}
	}
	return bars
}

func mustCompile(t *testing.T, formula string) Expr {
	t.Helper()
	expr, err := Compile(formula)
	if err != nil {
		t.Fatalf("failed to compile %q: %v", formula, err)
	}
	return expr
}

func TestMA(t *testing.T) {
	bars := barsFromCloses([]float64{1, 2, 3, 4, 5, 6})
	expr := mustCompile(t, "MA(CLOSE,3)")

	// Indices below period-1 have no value
	for i := 0; i < 2; i++ {
		if !math.IsNaN(expr.Eval(bars, i)) {
			t.Errorf("expected NaN at index %d, got %f", i, expr.Eval(bars, i))
		}
	}

	// Trailing 3-bar means elsewhere
	expected := []float64{2, 3, 4, 5}
	for i, want := range expected {
		got := expr.Eval(bars, i+2)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("MA at index %d: expected %f, got %f", i+2, want, got)
		}
	}
}

func TestMAConstantSeries(t *testing.T) {
	// 25 bars with constant close=100 and MA(CLOSE,20): indices 19-24
	// equal 100, earlier indices have no value.
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}
	bars := barsFromCloses(closes)
	expr := mustCompile(t, "MA(CLOSE,20)")
	series := ComputeSeries(expr, bars)

	if len(series) != 25 {
		t.Fatalf("expected 25 values, got %d", len(series))
	}
	for i := 0; i < 19; i++ {
		if !math.IsNaN(series[i]) {
			t.Errorf("expected NaN at index %d, got %f", i, series[i])
		}
	}
	for i := 19; i < 25; i++ {
		if math.Abs(series[i]-100) > 1e-9 {
			t.Errorf("expected 100 at index %d, got %f", i, series[i])
		}
	}
}

func TestEMAWindowReseeded(t *testing.T) {
	bars := barsFromCloses([]float64{10, 11, 12, 13, 14, 15, 16, 17})
	expr := mustCompile(t, "EMA(CLOSE,3)")

	for i := 0; i < 2; i++ {
		if !math.IsNaN(expr.Eval(bars, i)) {
			t.Errorf("expected NaN at index %d", i)
		}
	}

	// The EMA reseeds from the start of its own window: at index i the
	// value depends only on closes[i-2..i], with k = 2/(3+1) = 0.5.
	k := 0.5
	for i := 2; i < len(bars); i++ {
		seed := bars[i-2].Close
		seed = bars[i-1].Close*k + seed*(1-k)
		seed = bars[i].Close*k + seed*(1-k)
		got := expr.Eval(bars, i)
		if math.Abs(got-seed) > 1e-9 {
			t.Errorf("EMA at index %d: expected %f, got %f", i, seed, got)
		}
	}
}

func TestEMADeterministic(t *testing.T) {
	// Repeated evaluation at the same index must return identical
	// values: no running state survives between calls.
	bars := barsFromCloses([]float64{5, 9, 2, 7, 4, 8, 6, 3, 1, 10})
	expr := mustCompile(t, "EMA(CLOSE,4)")

	for i := range bars {
		first := expr.Eval(bars, i)
		second := expr.Eval(bars, i)
		if math.IsNaN(first) != math.IsNaN(second) {
			t.Fatalf("non-deterministic NaN at index %d", i)
		}
		if !math.IsNaN(first) && first != second {
			t.Errorf("non-deterministic EMA at index %d: %f vs %f", i, first, second)
		}
	}

	// Evaluating out of order must not change results either.
	backward := expr.Eval(bars, 9)
	expr.Eval(bars, 3)
	if again := expr.Eval(bars, 9); again != backward {
		t.Errorf("EMA at index 9 changed after evaluating index 3: %f vs %f", backward, again)
	}
}

func TestREF(t *testing.T) {
	// 30 bars with close=1..30 and REF(CLOSE,5): index 5 = 1,
	// index 29 = 25, indices 0-4 have no value.
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	bars := barsFromCloses(closes)
	expr := mustCompile(t, "REF(CLOSE,5)")
	series := ComputeSeries(expr, bars)

	for i := 0; i < 5; i++ {
		if !math.IsNaN(series[i]) {
			t.Errorf("expected NaN at index %d, got %f", i, series[i])
		}
	}
	if series[5] != 1 {
		t.Errorf("expected 1 at index 5, got %f", series[5])
	}
	if series[29] != 25 {
		t.Errorf("expected 25 at index 29, got %f", series[29])
	}
}

func TestFieldAtoms(t *testing.T) {
	bars := barsFromCloses([]float64{10, 20})

	cases := []struct {
		formula string
		index   int
		want    float64
	}{
		{"CLOSE", 1, 20},
		{"OPEN", 1, 19},
		{"HIGH", 0, 12},
		{"LOW", 0, 8},
		{"VOLUME", 1, 1001},
		{"close", 0, 10}, // case-insensitive
	}
	for _, tc := range cases {
		expr := mustCompile(t, tc.formula)
		got := expr.Eval(bars, tc.index)
		if got != tc.want {
			t.Errorf("%s at index %d: expected %f, got %f", tc.formula, tc.index, tc.want, got)
		}
	}
}

func TestFieldOutOfRange(t *testing.T) {
	bars := barsFromCloses([]float64{10})
	expr := mustCompile(t, "CLOSE")

	if !math.IsNaN(expr.Eval(bars, -1)) {
		t.Error("expected NaN below range")
	}
	if !math.IsNaN(expr.Eval(bars, 1)) {
		t.Error("expected NaN above range")
	}
}

func TestNullPropagation(t *testing.T) {
	bars := barsFromCloses([]float64{1, 2, 3, 4, 5, 6, 7, 8})

	// MA(CLOSE,5) - REF(CLOSE,3) at index 2: both operands missing.
	expr := mustCompile(t, "MA(CLOSE,5) - REF(CLOSE,3)")
	if !math.IsNaN(expr.Eval(bars, 2)) {
		t.Error("expected NaN when both operands are missing")
	}
	// At index 3 REF has a value but MA does not.
	if !math.IsNaN(expr.Eval(bars, 3)) {
		t.Error("expected NaN when one operand is missing")
	}
	// At index 4 both are defined.
	got := expr.Eval(bars, 4)
	want := 3.0 - 2.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %f at index 4, got %f", want, got)
	}

	for _, op := range []string{"+", "-", "*", "/"} {
		expr := mustCompile(t, "MA(CLOSE,5) "+op+" CLOSE")
		if !math.IsNaN(expr.Eval(bars, 0)) {
			t.Errorf("operator %s did not propagate NaN", op)
		}
	}
}

func TestDivisionByZero(t *testing.T) {
	bars := barsFromCloses([]float64{5})
	expr := mustCompile(t, "CLOSE / (CLOSE - CLOSE)")
	if !math.IsNaN(expr.Eval(bars, 0)) {
		t.Error("expected NaN for division by zero")
	}
}

func TestArithmetic(t *testing.T) {
	bars := barsFromCloses([]float64{10})

	cases := []struct {
		formula string
		want    float64
	}{
		{"CLOSE + 5", 15},
		{"CLOSE - 5", 5},
		{"CLOSE * 2", 20},
		{"CLOSE / 4", 2.5},
		{"-CLOSE", -10},
		{"2 + 3 * 4", 14},     // precedence
		{"(2 + 3) * 4", 20},   // parentheses
		{"CLOSE * 1.5", 15},   // float literal
		{"10 - 2 - 3", 5},     // left associativity
		{"EMA(CLOSE,12) - EMA(CLOSE,26)", math.NaN()},
	}
	for _, tc := range cases {
		expr := mustCompile(t, tc.formula)
		got := expr.Eval(bars, 0)
		if math.IsNaN(tc.want) {
			if !math.IsNaN(got) {
				t.Errorf("%s: expected NaN, got %f", tc.formula, got)
			}
			continue
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: expected %f, got %f", tc.formula, tc.want, got)
		}
	}
}

func TestLookback(t *testing.T) {
	cases := []struct {
		formula string
		want    int
	}{
		{"CLOSE", 0},
		{"MA(CLOSE,20)", 20},
		{"EMA(CLOSE,12) - EMA(CLOSE,26)", 26},
		{"REF(CLOSE,100)", 0}, // lag does not count toward the declared window
		{"MA(CLOSE,5) * EMA(HIGH,9)", 9},
	}
	for _, tc := range cases {
		expr := mustCompile(t, tc.formula)
		if got := expr.Lookback(); got != tc.want {
			t.Errorf("%s: expected lookback %d, got %d", tc.formula, tc.want, got)
		}
	}
}

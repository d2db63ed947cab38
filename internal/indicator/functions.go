package indicator

import "math"

// nan is the series "no value". Every operator propagates it; nothing
// in the evaluator ever panics on missing history.
var nan = math.NaN()

// functionArity maps supported function names to their total argument
// count (field plus integer arguments).
var functionArity = map[string]int{
	"MA":  2,
	"EMA": 2,
	"REF": 2,
}

func newCallExpr(name string, field Field, args []int) (Expr, *FormulaError) {
	switch name {
	case "MA":
		return &maExpr{field: field, period: args[0]}, nil
	case "EMA":
		return &emaExpr{field: field, period: args[0]}, nil
	case "REF":
		return &refExpr{field: field, offset: args[0]}, nil
	}
	// Unreachable while functionArity and this switch agree.
	return nil, &FormulaError{Kind: ErrUnknownFunction, Message: "unknown function " + name}
}

type numberExpr struct {
	value float64
}

func (e *numberExpr) Eval(bars []Bar, i int) float64 { return e.value }
func (e *numberExpr) Lookback() int                  { return 0 }

type fieldExpr struct {
	field Field
}

func (e *fieldExpr) Eval(bars []Bar, i int) float64 { return fieldAt(bars, e.field, i) }
func (e *fieldExpr) Lookback() int                  { return 0 }

type negateExpr struct {
	inner Expr
}

func (e *negateExpr) Eval(bars []Bar, i int) float64 { return -e.inner.Eval(bars, i) }
func (e *negateExpr) Lookback() int                  { return e.inner.Lookback() }

type binaryExpr struct {
	op    byte // '+', '-', '*', '/'
	left  Expr
	right Expr
}

func (e *binaryExpr) Eval(bars []Bar, i int) float64 {
	l := e.left.Eval(bars, i)
	r := e.right.Eval(bars, i)
	if math.IsNaN(l) || math.IsNaN(r) {
		return nan
	}
	switch e.op {
	case '+':
		return l + r
	case '-':
		return l - r
	case '*':
		return l * r
	case '/':
		if r == 0 {
			return nan
		}
		return l / r
	}
	return nan
}

func (e *binaryExpr) Lookback() int {
	return maxInt(e.left.Lookback(), e.right.Lookback())
}

// maExpr is the trailing arithmetic mean of a field over its period.
type maExpr struct {
	field  Field
	period int
}

func (e *maExpr) Eval(bars []Bar, i int) float64 {
	if i < e.period-1 || i >= len(bars) {
		return nan
	}
	sum := 0.0
	for j := i - e.period + 1; j <= i; j++ {
		v := fieldAt(bars, e.field, j)
		if math.IsNaN(v) {
			return nan
		}
		sum += v
	}
	return sum / float64(e.period)
}

func (e *maExpr) Lookback() int { return e.period }

// emaExpr is an exponential moving average that reseeds from the start
// of its own window on every evaluation. This is not the textbook
// running EMA: the recursion only ever covers the trailing period
// bars, so the value at index i depends on exactly bars[i-period+1..i].
// Downstream consumers depend on these exact values.
type emaExpr struct {
	field  Field
	period int
}

func (e *emaExpr) Eval(bars []Bar, i int) float64 {
	if i < e.period-1 || i >= len(bars) {
		return nan
	}
	k := 2.0 / (float64(e.period) + 1.0)
	seed := fieldAt(bars, e.field, i-e.period+1)
	if math.IsNaN(seed) {
		return nan
	}
	for j := i - e.period + 2; j <= i; j++ {
		v := fieldAt(bars, e.field, j)
		if math.IsNaN(v) {
			return nan
		}
		seed = v*k + seed*(1.0-k)
	}
	return seed
}

func (e *emaExpr) Lookback() int { return e.period }

// refExpr reads a field value offset bars back.
type refExpr struct {
	field  Field
	offset int
}

func (e *refExpr) Eval(bars []Bar, i int) float64 {
	if i < e.offset || i >= len(bars) {
		return nan
	}
	return fieldAt(bars, e.field, i-e.offset)
}

// REF is a lag, not a window: it does not count toward the declared
// MA/EMA lookback used for the insufficient-history diagnostic.
func (e *refExpr) Lookback() int { return 0 }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

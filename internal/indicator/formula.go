package indicator

import (
	"fmt"
	"strconv"
	"strings"
)

// ErrorKind classifies formula compilation failures so the editing UI
// can surface a specific message inline.
type ErrorKind string

const (
	ErrSyntax          ErrorKind = "syntax_error"
	ErrUnknownField    ErrorKind = "unknown_field"
	ErrUnknownFunction ErrorKind = "unknown_function"
	ErrBadArguments    ErrorKind = "bad_arguments"
)

// FormulaError is returned synchronously from Compile for invalid
// formula text. Evaluation never produces errors; insufficient history
// is represented as NaN values instead.
type FormulaError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *FormulaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func syntaxErrorf(format string, args ...interface{}) *FormulaError {
	return &FormulaError{Kind: ErrSyntax, Message: fmt.Sprintf(format, args...)}
}

// Expr is a compiled formula node. The tree is closed over the fixed
// field/function grammar: evaluating it can only ever read bar fields
// and combine them arithmetically, no matter what formula text the
// user submitted.
type Expr interface {
	// Eval computes the node's value at bar index i. NaN means "no
	// value" and propagates through every operator.
	Eval(bars []Bar, i int) float64

	// Lookback reports the largest MA/EMA window literal referenced
	// below this node. Used to fail fast when a formula declares a
	// window longer than the available history.
	Lookback() int
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOperator
	tokLeftParen
	tokRightParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func tokenize(input string) ([]token, *FormulaError) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{tokLeftParen, "(", i})
			i++
		case c == ')':
			tokens = append(tokens, token{tokRightParen, ")", i})
			i++
		case c == ',':
			tokens = append(tokens, token{tokComma, ",", i})
			i++
		case c == '+' || c == '-' || c == '*' || c == '/':
			tokens = append(tokens, token{tokOperator, string(c), i})
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			dots := 0
			for i < len(input) && (input[i] >= '0' && input[i] <= '9' || input[i] == '.') {
				if input[i] == '.' {
					dots++
				}
				i++
			}
			text := input[start:i]
			if dots > 1 || text == "." {
				return nil, syntaxErrorf("malformed number %q at position %d", text, start)
			}
			tokens = append(tokens, token{tokNumber, text, start})
		case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_':
			start := i
			for i < len(input) && (input[i] >= 'a' && input[i] <= 'z' ||
				input[i] >= 'A' && input[i] <= 'Z' ||
				input[i] >= '0' && input[i] <= '9' || input[i] == '_') {
				i++
			}
			tokens = append(tokens, token{tokIdent, input[start:i], start})
		default:
			return nil, syntaxErrorf("unexpected character %q at position %d", string(c), i)
		}
	}
	return tokens, nil
}

// parser is a recursive descent parser over the formula grammar:
//
//	expr   = term (("+" | "-") term)*
//	term   = factor (("*" | "/") factor)*
//	factor = number | field | call | "(" expr ")" | "-" factor
//	call   = funcName "(" field ("," integer)+ ")"
type parser struct {
	tokens []token
	pos    int
}

// Compile parses formula text into a closed expression tree. Field and
// function names are case-insensitive. On failure the returned
// *FormulaError carries the specific error kind.
func Compile(formula string) (Expr, *FormulaError) {
	if strings.TrimSpace(formula) == "" {
		return nil, syntaxErrorf("empty formula")
	}
	tokens, err := tokenize(formula)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		t := p.tokens[p.pos]
		return nil, syntaxErrorf("unexpected %q at position %d", t.text, t.pos)
	}
	return expr, nil
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) next() (token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *parser) parseExpr() (Expr, *FormulaError) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOperator || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: t.text[0], left: left, right: right}
	}
}

func (p *parser) parseTerm() (Expr, *FormulaError) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOperator || (t.text != "*" && t.text != "/") {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: t.text[0], left: left, right: right}
	}
}

func (p *parser) parseFactor() (Expr, *FormulaError) {
	t, ok := p.next()
	if !ok {
		return nil, syntaxErrorf("unexpected end of formula")
	}

	switch t.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, syntaxErrorf("malformed number %q at position %d", t.text, t.pos)
		}
		return &numberExpr{value: v}, nil

	case tokOperator:
		if t.text == "-" {
			inner, err := p.parseFactor()
			if err != nil {
				return nil, err
			}
			return &negateExpr{inner: inner}, nil
		}
		return nil, syntaxErrorf("unexpected operator %q at position %d", t.text, t.pos)

	case tokLeftParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if closing, ok := p.next(); !ok || closing.kind != tokRightParen {
			return nil, syntaxErrorf("missing closing parenthesis")
		}
		return inner, nil

	case tokIdent:
		if nt, ok := p.peek(); ok && nt.kind == tokLeftParen {
			return p.parseCall(t)
		}
		field, ok := fieldNames[strings.ToUpper(t.text)]
		if !ok {
			return nil, &FormulaError{
				Kind:    ErrUnknownField,
				Message: fmt.Sprintf("unknown field %q", t.text),
			}
		}
		return &fieldExpr{field: field}, nil

	default:
		return nil, syntaxErrorf("unexpected %q at position %d", t.text, t.pos)
	}
}

// parseCall parses a function invocation. The first argument must be a
// field atom and the remaining arguments positive integers; anything
// else is rejected as BadArguments so formulas cannot nest arbitrary
// computation inside a lookback function.
func (p *parser) parseCall(name token) (Expr, *FormulaError) {
	funcName := strings.ToUpper(name.text)
	arity, ok := functionArity[funcName]
	if !ok {
		return nil, &FormulaError{
			Kind:    ErrUnknownFunction,
			Message: fmt.Sprintf("unknown function %q", name.text),
		}
	}

	p.pos++ // consume "("

	badArgsf := func(format string, args ...interface{}) *FormulaError {
		return &FormulaError{Kind: ErrBadArguments, Message: fmt.Sprintf(format, args...)}
	}

	fieldTok, ok := p.next()
	if !ok || fieldTok.kind == tokRightParen {
		return nil, badArgsf("%s expects %d arguments", funcName, arity)
	}
	if fieldTok.kind != tokIdent {
		return nil, badArgsf("%s: first argument must be a price field", funcName)
	}
	if nt, ok := p.peek(); ok && nt.kind == tokLeftParen {
		return nil, badArgsf("%s: first argument must be a price field, not a function call", funcName)
	}
	field, ok := fieldNames[strings.ToUpper(fieldTok.text)]
	if !ok {
		return nil, &FormulaError{
			Kind:    ErrUnknownField,
			Message: fmt.Sprintf("unknown field %q", fieldTok.text),
		}
	}

	var args []int
	for {
		t, ok := p.next()
		if !ok {
			return nil, syntaxErrorf("missing closing parenthesis in %s call", funcName)
		}
		if t.kind == tokRightParen {
			break
		}
		if t.kind != tokComma {
			return nil, syntaxErrorf("unexpected %q in %s call", t.text, funcName)
		}
		argTok, ok := p.next()
		if !ok {
			return nil, syntaxErrorf("missing closing parenthesis in %s call", funcName)
		}
		if argTok.kind != tokNumber {
			return nil, badArgsf("%s: argument %d must be a positive integer", funcName, len(args)+2)
		}
		n, err := strconv.Atoi(argTok.text)
		if err != nil || n <= 0 {
			return nil, badArgsf("%s: argument %d must be a positive integer, got %q", funcName, len(args)+2, argTok.text)
		}
		args = append(args, n)
	}

	if len(args) != arity-1 {
		return nil, badArgsf("%s expects %d arguments, got %d", funcName, arity, len(args)+1)
	}

	return newCallExpr(funcName, field, args)
}

package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/chuanqi87/agent/internal/gateway"
)

// Calculator evaluates arithmetic expressions: the four basic
// operators, parentheses, and a small set of math functions and
// constants. Expressions are parsed, never handed to any interpreter.
type Calculator struct{}

func NewCalculator() *Calculator { return &Calculator{} }

func (c *Calculator) Name() string { return "calculator" }

func (c *Calculator) Description() string {
	return "Evaluate a mathematical expression. Supports + - * / ( ), sqrt, abs, sin, cos, tan, log, exp, and the constants pi and e."
}

func (c *Calculator) Schema() gateway.ToolDef {
	return schemaDef(c.Name(), c.Description(), &gateway.SchemaObject{
		Type: "object",
		Properties: gateway.PropertyList{
			{Name: "expression", Spec: strProp("The expression to evaluate")},
		},
		Required: []string{"expression"},
	})
}

func (c *Calculator) Invoke(_ context.Context, args Arguments) (string, error) {
	expr := args.String("expression", args.Query())
	if expr == "" {
		return "", fmt.Errorf("calculator: empty expression")
	}

	result, err := evalExpression(expr)
	if err != nil {
		return "", fmt.Errorf("calculator: %w", err)
	}

	return fmt.Sprintf("%s = %s", expr, formatNumber(result)), nil
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

var calcFuncs = map[string]func(float64) float64{
	"sqrt": math.Sqrt,
	"abs":  math.Abs,
	"sin":  math.Sin,
	"cos":  math.Cos,
	"tan":  math.Tan,
	"log":  math.Log,
	"exp":  math.Exp,
}

var calcConsts = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// evalExpression parses and evaluates with a recursive-descent
// grammar: expr = term (('+'|'-') term)*, term = unary (('*'|'/')
// unary)*, unary = '-'* atom, atom = number | ident | ident '(' expr
// ')' | '(' expr ')'.
func evalExpression(input string) (float64, error) {
	p := &exprParser{input: strings.ReplaceAll(input, " ", "")}

	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	return v, nil
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) peek() (byte, bool) {
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}

	for {
		ch, ok := p.peek()
		if !ok || (ch != '+' && ch != '-') {
			return left, nil
		}
		p.pos++

		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if ch == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}

	for {
		ch, ok := p.peek()
		if !ok || (ch != '*' && ch != '/') {
			return left, nil
		}
		p.pos++

		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if ch == '*' {
			left *= right
		} else {
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	if ch, ok := p.peek(); ok && ch == '-' {
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	}
	return p.parseAtom()
}

func (p *exprParser) parseAtom() (float64, error) {
	ch, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("unexpected end of expression")
	}

	switch {
	case ch == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if ch, ok := p.peek(); !ok || ch != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil

	case ch >= '0' && ch <= '9' || ch == '.':
		return p.parseNumber()

	case unicode.IsLetter(rune(ch)):
		return p.parseIdent()

	default:
		return 0, fmt.Errorf("unexpected %q at position %d", ch, p.pos)
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	for {
		ch, ok := p.peek()
		if !ok || !(ch >= '0' && ch <= '9' || ch == '.') {
			break
		}
		p.pos++
	}

	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return v, nil
}

func (p *exprParser) parseIdent() (float64, error) {
	start := p.pos
	for {
		ch, ok := p.peek()
		if !ok || !unicode.IsLetter(rune(ch)) {
			break
		}
		p.pos++
	}
	name := p.input[start:p.pos]

	if v, ok := calcConsts[name]; ok {
		return v, nil
	}

	fn, ok := calcFuncs[name]
	if !ok {
		return 0, fmt.Errorf("unknown function %q", name)
	}

	if ch, hasMore := p.peek(); !hasMore || ch != '(' {
		return 0, fmt.Errorf("function %q requires parentheses", name)
	}
	p.pos++

	arg, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if ch, hasMore := p.peek(); !hasMore || ch != ')' {
		return 0, fmt.Errorf("missing closing parenthesis")
	}
	p.pos++

	return fn(arg), nil
}

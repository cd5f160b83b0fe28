package function

import (
	"fmt"
	"math"
	"strings"

	"github.com/Knetic/govaluate"
	"gonum.org/v1/gonum/diff/fd"
)

// Variable is the name of the free variable in an expression.
const Variable = "x"

var builtins = map[string]govaluate.ExpressionFunction{
	"sin":  unary(math.Sin),
	"cos":  unary(math.Cos),
	"tan":  unary(math.Tan),
	"asin": unary(math.Asin),
	"acos": unary(math.Acos),
	"atan": unary(math.Atan),
	"sinh": unary(math.Sinh),
	"cosh": unary(math.Cosh),
	"tanh": unary(math.Tanh),
	"exp":  unary(math.Exp),
	"log":  unary(math.Log),
	"sqrt": unary(math.Sqrt),
	"abs":  unary(math.Abs),
	"cbrt": unary(math.Cbrt),
	"pow": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("pow expects 2 arguments, got %d", len(args))
		}
		return math.Pow(toFloat(args[0]), toFloat(args[1])), nil
	},
}

func unary(fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		return fn(toFloat(args[0])), nil
	}
}

// Expression is a function of x parsed from text, such as "x*x - 2".
//
// An Expression reuses its parameter map between calls and must not be
// evaluated from more than one goroutine at a time. Parse one Expression per
// solver.
type Expression struct {
	source string
	expr   *govaluate.EvaluableExpression
	deriv  *govaluate.EvaluableExpression
	params map[string]interface{}
	fd     fd.Settings
}

// ParseExpression parses f(x). When derivative is empty, Deriv falls back to a
// central finite difference of f.
func ParseExpression(source, derivative string) (*Expression, error) {
	expr, err := parse(source)
	if err != nil {
		return nil, fmt.Errorf("parsing function %q: %w", source, err)
	}

	e := &Expression{
		source: source,
		expr:   expr,
		params: map[string]interface{}{Variable: 0.0, "pi": math.Pi},
		fd:     fd.Settings{Formula: fd.Central},
	}

	if strings.TrimSpace(derivative) != "" {
		e.deriv, err = parse(derivative)
		if err != nil {
			return nil, fmt.Errorf("parsing derivative %q: %w", derivative, err)
		}
	}
	return e, nil
}

func parse(source string) (*govaluate.EvaluableExpression, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("empty expression")
	}
	// govaluate reads ^ as bitwise xor, which is never what a formula means.
	if strings.Contains(source, "^") {
		return nil, fmt.Errorf("^ is bitwise xor, write powers as ** or pow(x, n)")
	}

	expr, err := govaluate.NewEvaluableExpressionWithFunctions(source, builtins)
	if err != nil {
		return nil, err
	}
	for _, v := range expr.Vars() {
		if v != Variable && v != "pi" {
			return nil, fmt.Errorf("unknown variable %q", v)
		}
	}
	return expr, nil
}

// String returns the source text of f.
func (e *Expression) String() string {
	return e.source
}

// HasDerivative reports whether an analytic derivative was supplied.
func (e *Expression) HasDerivative() bool {
	return e.deriv != nil
}

// Eval returns f(x), or NaN when the expression cannot be evaluated.
func (e *Expression) Eval(x float64) float64 {
	return e.evaluate(e.expr, x)
}

// Deriv returns f'(x).
func (e *Expression) Deriv(x float64) float64 {
	if e.deriv != nil {
		return e.evaluate(e.deriv, x)
	}
	return fd.Derivative(e.Eval, x, &e.fd)
}

// EvalDeriv returns f(x) and f'(x).
func (e *Expression) EvalDeriv(x float64) (float64, float64) {
	return e.Eval(x), e.Deriv(x)
}

func (e *Expression) evaluate(expr *govaluate.EvaluableExpression, x float64) float64 {
	e.params[Variable] = x
	v, err := expr.Evaluate(e.params)
	if err != nil {
		return math.NaN()
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return math.NaN()
	}
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return math.NaN()
	}
}

var _ FdfFunction = (*Expression)(nil)

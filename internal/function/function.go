// Package function defines the scalar callables consumed by the root solvers.
package function

// Function is a scalar function of one variable.
// Implementations should be repeatable: the same x must yield the same value.
type Function interface {
	// Eval returns f(x).
	Eval(x float64) float64
}

// FdfFunction is a scalar function paired with its first derivative.
type FdfFunction interface {
	Function

	// Deriv returns f'(x).
	Deriv(x float64) float64

	// EvalDeriv returns f(x) and f'(x) in one pass. It must agree with
	// Eval and Deriv.
	EvalDeriv(x float64) (f, df float64)
}

// Func adapts an ordinary closure to the Function interface.
type Func func(float64) float64

// Eval calls fn(x).
func (fn Func) Eval(x float64) float64 {
	return fn(x)
}

// Fdf binds a function, its derivative and an optional combined evaluator.
type Fdf struct {
	F  func(float64) float64
	DF func(float64) float64

	// FDF computes both values at once. When nil, EvalDeriv calls F and DF.
	FDF func(float64) (float64, float64)
}

// NewFdf binds f, df and fdf. fdf may be nil.
func NewFdf(f, df func(float64) float64, fdf func(float64) (float64, float64)) *Fdf {
	return &Fdf{F: f, DF: df, FDF: fdf}
}

// Eval returns f(x).
func (p *Fdf) Eval(x float64) float64 {
	return p.F(x)
}

// Deriv returns f'(x).
func (p *Fdf) Deriv(x float64) float64 {
	return p.DF(x)
}

// EvalDeriv returns f(x) and f'(x).
func (p *Fdf) EvalDeriv(x float64) (float64, float64) {
	if p.FDF != nil {
		return p.FDF(x)
	}
	return p.F(x), p.DF(x)
}

var (
	_ Function    = Func(nil)
	_ FdfFunction = (*Fdf)(nil)
)

package interp

import "github.com/copyleftdev/roots/internal/function"

// Function exposes an interpolant as a function.FdfFunction so that root
// solvers can run on tabulated data. Evaluations outside the table return
// NaN, which the solvers report as a bad function value.
//
// Each Function owns an Accel and is not safe for concurrent use.
type Function struct {
	interp *Interp
	acc    *Accel
}

// NewFunction wraps p with a fresh accelerator.
func NewFunction(p *Interp) *Function {
	return &Function{interp: p, acc: NewAccel()}
}

// Eval returns the interpolated value at x.
func (f *Function) Eval(x float64) float64 {
	y, _ := f.interp.Eval(x, f.acc)
	return y
}

// Deriv returns the interpolant's slope at x.
func (f *Function) Deriv(x float64) float64 {
	dy, _ := f.interp.Deriv(x, f.acc)
	return dy
}

// EvalDeriv returns the value and slope at x.
func (f *Function) EvalDeriv(x float64) (float64, float64) {
	return f.Eval(x), f.Deriv(x)
}

// Accel returns the accelerator used by f.
func (f *Function) Accel() *Accel {
	return f.acc
}

var _ function.FdfFunction = (*Function)(nil)

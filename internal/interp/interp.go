// Package interp evaluates one-dimensional interpolants over tabulated data.
//
// A table is a strictly increasing sequence of sample points xa with matching
// values ya. Queries outside [xa[0], xa[n-1]] fail with ErrDomain and return
// NaN, so callers that ignore the error still see an invalid value.
package interp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Kind selects the interpolation scheme.
type Kind int

const (
	// Linear joins adjacent samples with straight lines.
	Linear Kind = iota
	// CSpline is a natural cubic spline: zero curvature at both ends.
	CSpline
)

var kindNames = map[Kind]string{
	Linear:  "linear",
	CSpline: "cspline",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MinSize returns the smallest table the kind accepts.
func (k Kind) MinSize() int {
	if k == CSpline {
		return 3
	}
	return 2
}

// ParseKind maps a kind name to its Kind.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Interp is an immutable interpolant over a sample table. It may be shared
// between goroutines as long as each uses its own Accel.
type Interp struct {
	kind Kind
	xa   []float64
	ya   []float64

	// spline coefficients per sample, c[i] = y''(xa[i])/2
	c []float64
}

// New copies xa and ya and prepares an interpolant of the given kind.
func New(kind Kind, xa, ya []float64) (*Interp, error) {
	if _, ok := kindNames[kind]; !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
	if len(xa) != len(ya) {
		return nil, fmt.Errorf("%w: %d sample points but %d values", ErrInvalidTable, len(xa), len(ya))
	}
	if len(xa) < kind.MinSize() {
		return nil, fmt.Errorf("%w: %s needs at least %d samples, got %d", ErrInvalidTable, kind, kind.MinSize(), len(xa))
	}
	for i := range xa {
		if math.IsNaN(xa[i]) || math.IsInf(xa[i], 0) || math.IsNaN(ya[i]) || math.IsInf(ya[i], 0) {
			return nil, fmt.Errorf("%w: sample %d (%v, %v) is not finite", ErrInvalidTable, i, xa[i], ya[i])
		}
		if i > 0 && !(xa[i] > xa[i-1]) {
			return nil, fmt.Errorf("%w: sample points must increase strictly, xa[%d] = %v after %v", ErrInvalidTable, i, xa[i], xa[i-1])
		}
	}

	p := &Interp{
		kind: kind,
		xa:   append([]float64(nil), xa...),
		ya:   append([]float64(nil), ya...),
	}
	if kind == CSpline {
		if err := p.initSpline(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// initSpline solves the tridiagonal system for the interior curvatures of
// a natural spline. The system is symmetric positive definite for strictly
// increasing sample points.
func (p *Interp) initSpline() error {
	n := len(p.xa)
	m := n - 2
	p.c = make([]float64, n)

	a := workspace.getSymDense(m)
	g := workspace.getVecDense(m)
	sol := workspace.getVecDense(m)
	defer func() {
		workspace.putSymDense(a)
		workspace.putVecDense(g)
		workspace.putVecDense(sol)
	}()

	for i := 0; i < m; i++ {
		h := p.xa[i+1] - p.xa[i]
		hNext := p.xa[i+2] - p.xa[i+1]
		g.SetVec(i, 3*((p.ya[i+2]-p.ya[i+1])/hNext-(p.ya[i+1]-p.ya[i])/h))
		a.SetSym(i, i, 2*(h+hNext))
		if i+1 < m {
			a.SetSym(i, i+1, hNext)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return fmt.Errorf("%w: spline system is not positive definite", ErrInvalidTable)
	}
	if err := chol.SolveVecTo(sol, g); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	for i := 0; i < m; i++ {
		p.c[i+1] = sol.AtVec(i)
	}
	return nil
}

// Kind returns the interpolation scheme.
func (p *Interp) Kind() Kind { return p.kind }

// Len returns the number of samples.
func (p *Interp) Len() int { return len(p.xa) }

// XMin returns the first sample point.
func (p *Interp) XMin() float64 { return p.xa[0] }

// XMax returns the last sample point.
func (p *Interp) XMax() float64 { return p.xa[len(p.xa)-1] }

// locate checks x against the table and returns its interval index.
func (p *Interp) locate(x float64, acc *Accel) (int, error) {
	if math.IsNaN(x) || x < p.xa[0] || x > p.xa[len(p.xa)-1] {
		return 0, fmt.Errorf("%w: x = %v not in [%v, %v]", ErrDomain, x, p.XMin(), p.XMax())
	}
	if acc != nil {
		return acc.Find(p.xa, x), nil
	}
	return Bsearch(p.xa, x, 0, len(p.xa)-1), nil
}

// coefficients returns the polynomial y = y0 + dx*(b + dx*(c + dx*d)) on
// interval i.
func (p *Interp) coefficients(i int) (y0, b, c, d float64) {
	h := p.xa[i+1] - p.xa[i]
	dy := p.ya[i+1] - p.ya[i]
	if p.kind == Linear {
		return p.ya[i], dy / h, 0, 0
	}
	c0, c1 := p.c[i], p.c[i+1]
	b = dy/h - h*(c1+2*c0)/3
	d = (c1 - c0) / (3 * h)
	return p.ya[i], b, c0, d
}

// Eval returns the interpolated value at x.
func (p *Interp) Eval(x float64, acc *Accel) (float64, error) {
	i, err := p.locate(x, acc)
	if err != nil {
		return math.NaN(), err
	}
	y0, b, c, d := p.coefficients(i)
	dx := x - p.xa[i]
	return y0 + dx*(b+dx*(c+dx*d)), nil
}

// Deriv returns the first derivative of the interpolant at x.
func (p *Interp) Deriv(x float64, acc *Accel) (float64, error) {
	i, err := p.locate(x, acc)
	if err != nil {
		return math.NaN(), err
	}
	_, b, c, d := p.coefficients(i)
	dx := x - p.xa[i]
	return b + dx*(2*c+3*d*dx), nil
}

// Deriv2 returns the second derivative of the interpolant at x. It is zero
// everywhere for Linear.
func (p *Interp) Deriv2(x float64, acc *Accel) (float64, error) {
	i, err := p.locate(x, acc)
	if err != nil {
		return math.NaN(), err
	}
	_, _, c, d := p.coefficients(i)
	dx := x - p.xa[i]
	return 2*c + 6*d*dx, nil
}

// Integ returns the integral of the interpolant over [a, b].
func (p *Interp) Integ(a, b float64, acc *Accel) (float64, error) {
	if a > b {
		return math.NaN(), fmt.Errorf("%w: lower limit %v exceeds upper limit %v", ErrInvalidRange, a, b)
	}
	lo, err := p.locate(a, acc)
	if err != nil {
		return math.NaN(), err
	}
	hi, err := p.locate(b, acc)
	if err != nil {
		return math.NaN(), err
	}
	if a == b {
		return 0, nil
	}

	var sum float64
	for i := lo; i <= hi; i++ {
		y0, slope, c, d := p.coefficients(i)
		from := math.Max(a, p.xa[i])
		to := math.Min(b, p.xa[i+1])
		sum += integrate(y0, slope, c, d, p.xa[i], from, to)
	}
	return sum, nil
}

// integrate returns the integral over [from, to] of the cubic with the
// given coefficients anchored at xi.
func integrate(y0, b, c, d, xi, from, to float64) float64 {
	r1 := from - xi
	r2 := to - xi
	r12 := r1 + r2
	squares := r1*r1 + r2*r2
	return (to - from) * (y0 + 0.5*b*r12 + c*(squares+r1*r2)/3 + 0.25*d*squares*r12)
}

package roots

import (
	"math"

	"go.uber.org/zap"

	"github.com/copyleftdev/roots/internal/function"
)

// BracketingSolver shrinks an interval known to contain a root.
//
// A BracketingSolver is not safe for concurrent use. Independent solvers
// share no state and may run in parallel.
type BracketingSolver struct {
	kind     BracketingKind
	settings settings

	fn    function.Function
	lower float64
	upper float64
	root  float64

	fLower float64
	fUpper float64

	// Brent keeps b as the best estimate, c as the contrapoint with
	// f(c) of opposite sign, and a as the previous b.
	a, b, c    float64
	fa, fb, fc float64
	d, e       float64
}

// NewBracketing returns a solver for kind with no function bound.
func NewBracketing(kind BracketingKind, opts ...Option) (*BracketingSolver, error) {
	if _, ok := bracketingNames[kind]; !ok {
		return nil, newError(ErrUnknownKind, "%v", kind).WithOperation("NewBracketing")
	}
	s, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return &BracketingSolver{
		kind:     kind,
		settings: s,
		lower:    math.NaN(),
		upper:    math.NaN(),
		root:     math.NaN(),
	}, nil
}

// Kind returns the algorithm of the solver.
func (s *BracketingSolver) Kind() BracketingKind {
	return s.kind
}

// Name returns the algorithm name.
func (s *BracketingSolver) Name() string {
	return s.kind.String()
}

// Root returns the current estimate of the root, or NaN before Set.
func (s *BracketingSolver) Root() float64 {
	return s.root
}

// XLower returns the lower end of the current bracket, or NaN before Set.
func (s *BracketingSolver) XLower() float64 {
	return s.lower
}

// XUpper returns the upper end of the current bracket, or NaN before Set.
func (s *BracketingSolver) XUpper() float64 {
	return s.upper
}

// Set binds f and the initial bracket [lower, upper], replacing any previous
// problem. It fails with ErrInvalidBracket unless lower < upper and f(lower),
// f(upper) do not share a sign. On failure the solver is left unbound.
func (s *BracketingSolver) Set(f function.Function, lower, upper float64) error {
	s.unbind()

	if f == nil {
		return s.fail("Set", newError(ErrNotSet, "nil function"))
	}
	if !finite(lower) || !finite(upper) || !(lower < upper) {
		return s.fail("Set", newError(ErrInvalidBracket, "need lower < upper, got [%v, %v]", lower, upper))
	}

	fLower := f.Eval(lower)
	fUpper := f.Eval(upper)
	if !finite(fLower) || !finite(fUpper) {
		return s.fail("Set", newError(ErrBadFunction, "f(%v) = %v, f(%v) = %v", lower, fLower, upper, fUpper))
	}
	if sameSign(fLower, fUpper) {
		return s.fail("Set", newError(ErrInvalidBracket, "endpoints do not straddle y=0: f(%v) = %v, f(%v) = %v", lower, fLower, upper, fUpper))
	}

	s.fn = f
	s.lower, s.upper = lower, upper
	s.fLower, s.fUpper = fLower, fUpper
	s.root = 0.5 * (lower + upper)

	s.a, s.fa = lower, fLower
	s.b, s.fb = upper, fUpper
	s.c, s.fc = upper, fUpper
	s.d = upper - lower
	s.e = upper - lower

	s.settings.logger.Debug("bracketing solver set",
		zap.String("algorithm", s.Name()),
		zap.Float64("lower", lower),
		zap.Float64("upper", upper),
	)
	return nil
}

// Iterate performs one step of the algorithm and updates the bracket and
// the root estimate.
func (s *BracketingSolver) Iterate() error {
	if s.fn == nil {
		return s.fail("Iterate", newError(ErrNotSet, "call Set before Iterate"))
	}

	var err error
	switch s.kind {
	case Bisection:
		err = s.bisection()
	case FalsePosition:
		err = s.falsePosition()
	case Brent:
		err = s.brent()
	}
	if err != nil {
		return s.fail("Iterate", err)
	}
	return nil
}

func (s *BracketingSolver) eval(x float64) (float64, error) {
	y := s.fn.Eval(x)
	if !finite(y) {
		return y, newError(ErrBadFunction, "f(%v) = %v", x, y)
	}
	return y, nil
}

// collapse handles an endpoint that is already an exact root.
func (s *BracketingSolver) collapse() bool {
	switch {
	case s.fLower == 0:
		s.root, s.upper, s.fUpper = s.lower, s.lower, 0
		return true
	case s.fUpper == 0:
		s.root, s.lower, s.fLower = s.upper, s.upper, 0
		return true
	}
	return false
}

func (s *BracketingSolver) bisection() error {
	if s.collapse() {
		return nil
	}

	left, right := s.lower, s.upper
	mid := 0.5 * (left + right)
	fMid, err := s.eval(mid)
	if err != nil {
		return err
	}

	if fMid == 0 {
		s.root, s.lower, s.upper = mid, mid, mid
		s.fLower, s.fUpper = 0, 0
		return nil
	}

	if sameSign(s.fLower, fMid) {
		s.lower, s.fLower = mid, fMid
		s.root = 0.5 * (mid + right)
	} else {
		s.upper, s.fUpper = mid, fMid
		s.root = 0.5 * (left + mid)
	}
	return nil
}

func (s *BracketingSolver) falsePosition() error {
	if s.collapse() {
		return nil
	}

	left, right := s.lower, s.upper
	fLeft, fRight := s.fLower, s.fUpper
	if sameSign(fLeft, fRight) || fLeft == fRight {
		return newError(ErrInvalidBracket, "f(%v) = %v, f(%v) = %v", left, fLeft, right, fRight)
	}

	xLinear := right - fRight*(left-right)/(fLeft-fRight)
	fLinear, err := s.eval(xLinear)
	if err != nil {
		return err
	}

	if fLinear == 0 {
		s.root, s.lower, s.upper = xLinear, xLinear, xLinear
		s.fLower, s.fUpper = 0, 0
		return nil
	}

	var width float64
	s.root = xLinear
	if sameSign(fLeft, fLinear) {
		s.lower, s.fLower = xLinear, fLinear
		width = right - xLinear
	} else {
		s.upper, s.fUpper = xLinear, fLinear
		width = xLinear - left
	}

	// A secant step that removed less than half the bracket is followed by
	// a bisection of the original bracket.
	if width < 0.5*(right-left) {
		return nil
	}

	mid := 0.5 * (left + right)
	fMid, err := s.eval(mid)
	if err != nil {
		return err
	}

	if sameSign(fLeft, fMid) {
		s.lower, s.fLower = mid, fMid
		if s.root < mid {
			s.root = 0.5 * (mid + right)
		}
	} else {
		s.upper, s.fUpper = mid, fMid
		if s.root > mid {
			s.root = 0.5 * (left + mid)
		}
	}
	return nil
}

func (s *BracketingSolver) brent() error {
	a, b, c := s.a, s.b, s.c
	fa, fb, fc := s.fa, s.fb, s.fc
	d, e := s.d, s.e
	acEqual := false

	if sameSign(fb, fc) {
		acEqual = true
		c, fc = a, fa
		d = b - a
		e = b - a
	}

	if math.Abs(fc) < math.Abs(fb) {
		acEqual = true
		a, b, c = b, c, b
		fa, fb, fc = fb, fc, fb
	}

	tol := 0.5 * epsilon * math.Abs(b)
	m := 0.5 * (c - b)

	if fb == 0 {
		s.root, s.lower, s.upper = b, b, b
		s.storeBrent(a, b, c, fa, fb, fc, d, e)
		return nil
	}

	if math.Abs(m) <= tol {
		s.root = b
		s.lower, s.upper = math.Min(b, c), math.Max(b, c)
		s.storeBrent(a, b, c, fa, fb, fc, d, e)
		return nil
	}

	if math.Abs(e) < tol || math.Abs(fa) <= math.Abs(fb) {
		d, e = m, m
	} else {
		var p, q float64
		sfa := fb / fa
		if acEqual {
			// secant through b and c
			p = 2 * m * sfa
			q = 1 - sfa
		} else {
			// inverse quadratic through a, b, c
			qa := fa / fc
			r := fb / fc
			p = sfa * (2*m*qa*(qa-r) - (b-a)*(r-1))
			q = (qa - 1) * (r - 1) * (sfa - 1)
		}

		if p > 0 {
			q = -q
		} else {
			p = -p
		}

		// Accept the interpolant only if it stays well inside the bracket
		// and shrinks faster than the step before last.
		if 2*p < math.Min(3*m*q-math.Abs(tol*q), math.Abs(e*q)) {
			e = d
			d = p / q
		} else {
			d, e = m, m
		}
	}

	a, fa = b, fb
	if math.Abs(d) > tol {
		b += d
	} else if m > 0 {
		b += tol
	} else {
		b -= tol
	}

	var err error
	fb, err = s.eval(b)
	if err != nil {
		return err
	}

	s.storeBrent(a, b, c, fa, fb, fc, d, e)

	s.root = b
	if sameSign(fb, fc) {
		c = a
	}
	s.lower, s.upper = math.Min(b, c), math.Max(b, c)
	return nil
}

func (s *BracketingSolver) storeBrent(a, b, c, fa, fb, fc, d, e float64) {
	s.a, s.b, s.c = a, b, c
	s.fa, s.fb, s.fc = fa, fb, fc
	s.d, s.e = d, e
}

func (s *BracketingSolver) unbind() {
	s.fn = nil
	s.lower, s.upper, s.root = math.NaN(), math.NaN(), math.NaN()
}

func (s *BracketingSolver) fail(op string, err error) error {
	e, ok := err.(*Error)
	if !ok {
		e = &Error{Err: err}
	}
	return e.WithOperation(op).WithComponent(s.Name())
}

// epsilon is the spacing of float64 values around 1.
var epsilon = math.Nextafter(1, 2) - 1

var _ Solver = (*BracketingSolver)(nil)

package roots

import (
	"math"

	"go.uber.org/zap"

	"github.com/copyleftdev/roots/internal/function"
)

// PolishingSolver refines a single estimate of a root using derivative
// information. It keeps no bracket and gives no error bound.
//
// A PolishingSolver is not safe for concurrent use.
type PolishingSolver struct {
	kind     PolishingKind
	settings settings

	fn   function.FdfFunction
	root float64

	// x is the current Newton iterate; for Steffensen it differs from root,
	// which holds the accelerated value.
	x  float64
	f  float64
	df float64

	// previous Newton iterate and step count for Steffensen
	x1    float64
	count int
}

// NewPolishing returns a solver for kind with no function bound.
func NewPolishing(kind PolishingKind, opts ...Option) (*PolishingSolver, error) {
	if _, ok := polishingNames[kind]; !ok {
		return nil, newError(ErrUnknownKind, "%v", kind).WithOperation("NewPolishing")
	}
	s, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return &PolishingSolver{
		kind:     kind,
		settings: s,
		root:     math.NaN(),
	}, nil
}

// Kind returns the algorithm of the solver.
func (s *PolishingSolver) Kind() PolishingKind {
	return s.kind
}

// Name returns the algorithm name.
func (s *PolishingSolver) Name() string {
	return s.kind.String()
}

// Root returns the current estimate of the root, or NaN before Set.
func (s *PolishingSolver) Root() float64 {
	return s.root
}

// Set binds fdf and the initial guess, replacing any previous problem.
// The secant method takes its first step along f'(guess) and uses secant
// slopes afterwards.
func (s *PolishingSolver) Set(fdf function.FdfFunction, guess float64) error {
	s.unbind()

	if fdf == nil {
		return s.fail("Set", newError(ErrNotSet, "nil function"))
	}
	if !finite(guess) {
		return s.fail("Set", newError(ErrBadFunction, "initial guess %v is not finite", guess))
	}

	f, df := fdf.EvalDeriv(guess)
	if !finite(f) || !finite(df) {
		return s.fail("Set", newError(ErrBadFunction, "f(%v) = %v, f'(%v) = %v", guess, f, guess, df))
	}

	s.bind(fdf, guess, f, df)
	return nil
}

// SetPoints binds fdf for the secant method seeded with two points instead
// of a derivative. The first Iterate extrapolates through (x0, f(x0)) and
// (x1, f(x1)). Only the secant method supports it.
func (s *PolishingSolver) SetPoints(fdf function.FdfFunction, x0, x1 float64) error {
	s.unbind()

	if s.kind != Secant {
		return s.fail("SetPoints", newError(ErrUnsupported, "two-point seeding needs the secant method"))
	}
	if fdf == nil {
		return s.fail("SetPoints", newError(ErrNotSet, "nil function"))
	}
	if !finite(x0) || !finite(x1) || x0 == x1 {
		return s.fail("SetPoints", newError(ErrDerivativeDegenerate, "need two distinct finite points, got %v and %v", x0, x1))
	}

	f0 := fdf.Eval(x0)
	f1 := fdf.Eval(x1)
	if !finite(f0) || !finite(f1) {
		return s.fail("SetPoints", newError(ErrBadFunction, "f(%v) = %v, f(%v) = %v", x0, f0, x1, f1))
	}

	s.bind(fdf, x1, f1, (f1-f0)/(x1-x0))
	return nil
}

func (s *PolishingSolver) bind(fdf function.FdfFunction, x, f, df float64) {
	s.fn = fdf
	s.root = x
	s.x, s.f, s.df = x, f, df
	s.x1 = 0
	s.count = 1

	s.settings.logger.Debug("polishing solver set",
		zap.String("algorithm", s.Name()),
		zap.Float64("guess", x),
	)
}

// Iterate performs one step of the algorithm and updates the root estimate.
func (s *PolishingSolver) Iterate() error {
	if s.fn == nil {
		return s.fail("Iterate", newError(ErrNotSet, "call Set before Iterate"))
	}

	var err error
	switch s.kind {
	case Newton:
		err = s.newton()
	case Secant:
		err = s.secant()
	case Steffensen:
		err = s.steffensen()
	}
	if err != nil {
		return s.fail("Iterate", err)
	}
	return nil
}

// step returns the Newton update from the current state.
func (s *PolishingSolver) step() (float64, error) {
	if math.Abs(s.df) <= s.settings.derivThreshold {
		return 0, newError(ErrDerivativeDegenerate, "slope %v at x = %v is within %v of zero", s.df, s.x, s.settings.derivThreshold)
	}
	next := s.x - s.f/s.df
	if !finite(next) {
		return 0, newError(ErrDerivativeDegenerate, "step from x = %v with slope %v is not finite", s.x, s.df)
	}
	return next, nil
}

func (s *PolishingSolver) evalDeriv(x float64) (float64, float64, error) {
	f, df := s.fn.EvalDeriv(x)
	if !finite(f) {
		return f, df, newError(ErrBadFunction, "f(%v) = %v", x, f)
	}
	if !finite(df) {
		return f, df, newError(ErrBadFunction, "f'(%v) = %v", x, df)
	}
	return f, df, nil
}

func (s *PolishingSolver) newton() error {
	next, err := s.step()
	if err != nil {
		return err
	}
	f, df, err := s.evalDeriv(next)
	if err != nil {
		return err
	}
	s.root = next
	s.x, s.f, s.df = next, f, df
	return nil
}

func (s *PolishingSolver) secant() error {
	next, err := s.step()
	if err != nil {
		return err
	}
	f := s.fn.Eval(next)
	if !finite(f) {
		return newError(ErrBadFunction, "f(%v) = %v", next, f)
	}

	// slope of the chord through the previous and the new point; an exact
	// root leaves x unchanged and keeps the old slope
	slope := s.df
	if next != s.x {
		slope = (f - s.f) / (next - s.x)
	}

	s.root = next
	s.x, s.f, s.df = next, f, slope
	return nil
}

func (s *PolishingSolver) steffensen() error {
	x, x1 := s.x, s.x1
	next, err := s.step()
	if err != nil {
		return err
	}
	f, df, err := s.evalDeriv(next)
	if err != nil {
		return err
	}

	s.x1 = x
	s.x, s.f, s.df = next, f, df

	if s.count < 3 {
		s.root = next
		s.count++
		return nil
	}

	u := x - x1
	v := next - 2*x + x1
	if v == 0 {
		s.root = next
		return nil
	}
	accelerated := x1 - u*u/v
	if !finite(accelerated) {
		s.root = next
		return nil
	}
	s.root = accelerated
	return nil
}

func (s *PolishingSolver) unbind() {
	s.fn = nil
	s.root = math.NaN()
}

func (s *PolishingSolver) fail(op string, err error) error {
	e, ok := err.(*Error)
	if !ok {
		e = &Error{Err: err}
	}
	return e.WithOperation(op).WithComponent(s.Name())
}

var _ Solver = (*PolishingSolver)(nil)

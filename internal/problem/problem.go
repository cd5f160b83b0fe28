// Package problem describes a root-finding problem as data and solves it.
//
// A Spec names an algorithm, the function (an expression in x or a sample
// table) and the starting point. Specs decode from JSON request bodies and
// TOML batch files alike.
package problem

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/copyleftdev/roots/internal/function"
	"github.com/copyleftdev/roots/internal/interp"
	"github.com/copyleftdev/roots/internal/roots"
)

// ErrInvalidSpec is returned by Validate and Solve for malformed problems.
var ErrInvalidSpec = errors.New("invalid problem")

// Table is a tabulated function, interpolated with the named kind
// ("linear" or "cspline"; defaults to "cspline").
type Table struct {
	Kind string    `json:"kind,omitempty" toml:"kind"`
	X    []float64 `json:"x" toml:"x"`
	Y    []float64 `json:"y" toml:"y"`
}

// Build returns the interpolant described by t.
func (t *Table) Build() (*interp.Interp, error) {
	name := t.Kind
	if name == "" {
		name = interp.CSpline.String()
	}
	kind, ok := interp.ParseKind(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown interpolation kind %q", ErrInvalidSpec, t.Kind)
	}
	return interp.New(kind, t.X, t.Y)
}

// Spec is a single root-finding problem.
type Spec struct {
	Name string `json:"name,omitempty" toml:"name"`

	// Method is one of bisection, false_position, brent, newton, secant
	// or steffensen.
	Method string `json:"method" toml:"method"`

	// Expression is f(x) in govaluate syntax. Derivative is optional and
	// defaults to a finite difference. Table replaces Expression.
	Expression string `json:"expression,omitempty" toml:"expression"`
	Derivative string `json:"derivative,omitempty" toml:"derivative"`
	Table      *Table `json:"table,omitempty" toml:"table"`

	// Lower and Upper bracket the root for bracketing methods.
	Lower float64 `json:"lower,omitempty" toml:"lower"`
	Upper float64 `json:"upper,omitempty" toml:"upper"`

	// Guess starts polishing methods. Guess2, for secant only, seeds the
	// first step from two points instead of the derivative.
	Guess  float64  `json:"guess,omitempty" toml:"guess"`
	Guess2 *float64 `json:"guess2,omitempty" toml:"guess2"`

	EpsAbs        float64 `json:"eps_abs,omitempty" toml:"eps_abs"`
	EpsRel        float64 `json:"eps_rel,omitempty" toml:"eps_rel"`
	Residual      float64 `json:"residual,omitempty" toml:"residual"`
	MaxIterations int     `json:"max_iterations,omitempty" toml:"max_iterations"`
}

// Bracketing reports whether the method is a bracketing algorithm.
func (s *Spec) Bracketing() bool {
	_, ok := roots.ParseBracketingKind(s.Method)
	return ok
}

// Validate checks s without evaluating the function.
func (s *Spec) Validate() error {
	_, bracketing := roots.ParseBracketingKind(s.Method)
	_, polishing := roots.ParsePolishingKind(s.Method)
	if !bracketing && !polishing {
		return fmt.Errorf("%w: unknown method %q", ErrInvalidSpec, s.Method)
	}

	hasExpr := strings.TrimSpace(s.Expression) != ""
	switch {
	case hasExpr && s.Table != nil:
		return fmt.Errorf("%w: set either expression or table, not both", ErrInvalidSpec)
	case !hasExpr && s.Table == nil:
		return fmt.Errorf("%w: missing expression", ErrInvalidSpec)
	case s.Table != nil && s.Derivative != "":
		return fmt.Errorf("%w: derivative is taken from the table", ErrInvalidSpec)
	}

	if bracketing && !(s.Lower < s.Upper) {
		return fmt.Errorf("%w: need lower < upper, got [%v, %v]", ErrInvalidSpec, s.Lower, s.Upper)
	}
	if s.Guess2 != nil && s.Method != roots.Secant.String() {
		return fmt.Errorf("%w: guess2 needs the secant method", ErrInvalidSpec)
	}
	for name, v := range map[string]float64{"eps_abs": s.EpsAbs, "eps_rel": s.EpsRel, "residual": s.Residual} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s must be non-negative, got %v", ErrInvalidSpec, name, v)
		}
	}
	if s.MaxIterations < 0 {
		return fmt.Errorf("%w: max_iterations must be non-negative, got %d", ErrInvalidSpec, s.MaxIterations)
	}
	return nil
}

// Options carries service-wide defaults applied to every Spec.
type Options struct {
	MaxIterations int
	EpsAbs        float64
	EpsRel        float64
	// DerivativeThreshold is passed to the polishing solvers as is, so zero
	// only rejects exact zeros. A negative value keeps
	// roots.DefaultDerivativeThreshold.
	DerivativeThreshold float64
	Logger              *zap.Logger
}

// DefaultOptions mirror the configuration defaults.
func DefaultOptions() Options {
	return Options{
		MaxIterations:       roots.DefaultMaxIterations,
		EpsAbs:              0,
		EpsRel:              1e-10,
		DerivativeThreshold: roots.DefaultDerivativeThreshold,
	}
}

// Solve validates s, builds a fresh function and solver for it, and runs
// the solver to convergence. The returned result is non-nil whenever the
// solver was started, including on ErrMaxIterations and cancellation.
func Solve(ctx context.Context, s Spec, opts Options) (*roots.Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if s.Name != "" {
		logger = logger.With(zap.String("problem", s.Name))
	}

	fdf, err := s.function()
	if err != nil {
		return nil, err
	}

	solverOpts := []roots.Option{roots.WithLogger(logger)}
	if opts.DerivativeThreshold >= 0 {
		solverOpts = append(solverOpts, roots.WithDerivativeThreshold(opts.DerivativeThreshold))
	}

	solver, err := newSolver(s, fdf, solverOpts)
	if err != nil {
		return nil, err
	}

	cfg := roots.RunConfig{
		MaxIterations: s.MaxIterations,
		EpsAbs:        s.EpsAbs,
		EpsRel:        s.EpsRel,
		Residual:      s.Residual,
		Function:      fdf,
		Logger:        logger,
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = opts.MaxIterations
	}
	if cfg.EpsAbs == 0 && cfg.EpsRel == 0 {
		cfg.EpsAbs, cfg.EpsRel = opts.EpsAbs, opts.EpsRel
	}

	result, err := roots.Run(ctx, solver, cfg)
	if err != nil {
		logger.Debug("solve stopped", zap.String("method", s.Method), zap.Error(err))
		return result, err
	}
	logger.Debug("solve finished",
		zap.String("method", s.Method),
		zap.Float64("root", result.Root),
		zap.Int("iterations", result.Iterations),
	)
	return result, nil
}

func (s *Spec) function() (function.FdfFunction, error) {
	if s.Table != nil {
		table, err := s.Table.Build()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
		}
		return interp.NewFunction(table), nil
	}
	expr, err := function.ParseExpression(s.Expression, s.Derivative)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	return expr, nil
}

func newSolver(s Spec, fdf function.FdfFunction, opts []roots.Option) (roots.Solver, error) {
	if kind, ok := roots.ParseBracketingKind(s.Method); ok {
		solver, err := roots.NewBracketing(kind, opts...)
		if err != nil {
			return nil, err
		}
		if err := solver.Set(fdf, s.Lower, s.Upper); err != nil {
			return nil, err
		}
		return solver, nil
	}

	kind, _ := roots.ParsePolishingKind(s.Method)
	solver, err := roots.NewPolishing(kind, opts...)
	if err != nil {
		return nil, err
	}
	if s.Guess2 != nil {
		err = solver.SetPoints(fdf, s.Guess, *s.Guess2)
	} else {
		err = solver.Set(fdf, s.Guess)
	}
	if err != nil {
		return nil, err
	}
	return solver, nil
}

package roots

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/copyleftdev/roots/internal/function"
)

// Bracketer is implemented by solvers that maintain an interval.
type Bracketer interface {
	XLower() float64
	XUpper() float64
}

// RunConfig controls the iteration loop in Run.
type RunConfig struct {
	// MaxIterations bounds the number of Iterate calls. Zero means
	// DefaultMaxIterations.
	MaxIterations int

	// EpsAbs and EpsRel are the tolerances of the interval test for
	// bracketing solvers and of the delta test for polishing solvers.
	EpsAbs float64
	EpsRel float64

	// Residual, when positive and Function is set, also accepts any
	// estimate with |f(root)| < Residual.
	Residual float64
	Function function.Function

	// Logger receives one debug line per iteration. Defaults to a no-op.
	Logger *zap.Logger
}

// DefaultMaxIterations is used when RunConfig.MaxIterations is zero.
const DefaultMaxIterations = 100

// Iteration records the solver state after one step.
type Iteration struct {
	Iteration int     `json:"iteration"`
	Root      float64 `json:"root"`
	Lower     float64 `json:"lower"`
	Upper     float64 `json:"upper"`
}

// Result is the outcome of Run.
type Result struct {
	Method     string      `json:"method"`
	Root       float64     `json:"root"`
	Lower      float64     `json:"lower"`
	Upper      float64     `json:"upper"`
	Iterations int         `json:"iterations"`
	Converged  bool        `json:"converged"`
	History    []Iteration `json:"history"`
}

// Run drives s until the convergence test passes, the iteration budget is
// spent, ctx is done, or Iterate fails. The solver must already be Set.
//
// Run always returns a non-nil Result describing the last state reached.
// Hitting the budget returns ErrMaxIterations alongside the result.
func Run(ctx context.Context, s Solver, cfg RunConfig) (*Result, error) {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("algorithm", s.Name()))

	result := &Result{
		Method:  s.Name(),
		History: make([]Iteration, 0, min(cfg.MaxIterations, 64)),
	}
	bracket, hasBracket := s.(Bracketer)
	record := func(i int) {
		result.Root = s.Root()
		result.Lower, result.Upper = math.NaN(), math.NaN()
		if hasBracket {
			result.Lower, result.Upper = bracket.XLower(), bracket.XUpper()
		}
		result.Iterations = i
		if i > 0 {
			result.History = append(result.History, Iteration{
				Iteration: i,
				Root:      result.Root,
				Lower:     result.Lower,
				Upper:     result.Upper,
			})
		}
	}
	record(0)

	for i := 1; i <= cfg.MaxIterations; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		previous := s.Root()
		if err := s.Iterate(); err != nil {
			logger.Debug("iteration failed", zap.Int("iteration", i), zap.Error(err))
			return result, err
		}
		record(i)

		logger.Debug("iteration",
			zap.Int("iteration", i),
			zap.Float64("root", result.Root),
			zap.Float64("lower", result.Lower),
			zap.Float64("upper", result.Upper),
		)

		done, err := converged(s, previous, cfg)
		if err != nil {
			return result, err
		}
		if done {
			result.Converged = true
			logger.Debug("converged", zap.Int("iterations", i), zap.Float64("root", result.Root))
			return result, nil
		}
	}

	return result, newError(ErrMaxIterations, "no convergence after %d iterations", cfg.MaxIterations).
		WithOperation("Run").
		WithComponent(s.Name())
}

func converged(s Solver, previous float64, cfg RunConfig) (bool, error) {
	if cfg.Residual > 0 && cfg.Function != nil {
		ok, err := TestResidual(cfg.Function.Eval(s.Root()), cfg.Residual)
		if err != nil || ok {
			return ok, err
		}
	}
	if b, ok := s.(Bracketer); ok {
		if b.XLower() == b.XUpper() {
			return true, nil
		}
		return TestInterval(b.XLower(), b.XUpper(), cfg.EpsAbs, cfg.EpsRel)
	}
	return TestDelta(s.Root(), previous, cfg.EpsAbs, cfg.EpsRel)
}

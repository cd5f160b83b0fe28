package roots

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// Solver is the iterate/query protocol shared by both solver families.
// A driver can run any algorithm through it without knowing which one it is.
type Solver interface {
	// Name returns the algorithm name.
	Name() string

	// Iterate performs one step of the algorithm.
	Iterate() error

	// Root returns the current best estimate of the root.
	Root() float64
}

// BracketingKind selects a derivative-free bracketing algorithm.
type BracketingKind int

const (
	// Bisection halves the bracket on every step.
	Bisection BracketingKind = iota
	// FalsePosition splits the bracket at the secant through its endpoints.
	FalsePosition
	// Brent combines inverse quadratic interpolation with bisection.
	Brent
)

var bracketingNames = map[BracketingKind]string{
	Bisection:     "bisection",
	FalsePosition: "false_position",
	Brent:         "brent",
}

func (k BracketingKind) String() string {
	if name, ok := bracketingNames[k]; ok {
		return name
	}
	return fmt.Sprintf("BracketingKind(%d)", int(k))
}

// PolishingKind selects a derivative-based polishing algorithm.
type PolishingKind int

const (
	// Newton follows the tangent line to zero.
	Newton PolishingKind = iota
	// Secant replaces the derivative with the slope through the last two iterates.
	Secant
	// Steffensen accelerates Newton iterates with Aitken's delta-squared process.
	Steffensen
)

var polishingNames = map[PolishingKind]string{
	Newton:     "newton",
	Secant:     "secant",
	Steffensen: "steffensen",
}

func (k PolishingKind) String() string {
	if name, ok := polishingNames[k]; ok {
		return name
	}
	return fmt.Sprintf("PolishingKind(%d)", int(k))
}

// ParseBracketingKind maps a stable algorithm name to its kind.
// "falsepos" is accepted as an alias for "false_position".
func ParseBracketingKind(name string) (BracketingKind, bool) {
	if name == "falsepos" {
		return FalsePosition, true
	}
	for k, n := range bracketingNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// ParsePolishingKind maps a stable algorithm name to its kind.
// "steffenson" is accepted as an alias for "steffensen".
func ParsePolishingKind(name string) (PolishingKind, bool) {
	if name == "steffenson" {
		return Steffensen, true
	}
	for k, n := range polishingNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// DefaultDerivativeThreshold is the slope magnitude at or below which a
// polishing step is reported as degenerate.
const DefaultDerivativeThreshold = 1e-14

type settings struct {
	derivThreshold float64
	logger         *zap.Logger
}

func defaultSettings() settings {
	return settings{
		derivThreshold: DefaultDerivativeThreshold,
		logger:         zap.NewNop(),
	}
}

// Option configures a solver at construction.
type Option func(*settings) error

// WithDerivativeThreshold sets the near-zero cutoff for derivatives and
// secant slopes. A threshold of zero only rejects exact zeros.
func WithDerivativeThreshold(threshold float64) Option {
	return func(s *settings) error {
		if threshold < 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
			return newError(ErrInvalidOption, "derivative threshold must be finite and non-negative, got %v", threshold)
		}
		s.derivThreshold = threshold
		return nil
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

func applyOptions(opts []Option) (settings, error) {
	s := defaultSettings()
	for _, opt := range opts {
		if err := opt(&s); err != nil {
			return s, err
		}
	}
	return s, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// sameSign reports whether a and b are both strictly positive or both
// strictly negative.
func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

package roots

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/copyleftdev/roots/internal/function"
)

// testFunction is a scalar problem with a known root inside [lower, upper].
type testFunction struct {
	name  string
	f     func(float64) float64
	df    func(float64) float64
	lower float64
	upper float64
	guess float64
	root  float64
}

func (tf testFunction) fdf() *function.Fdf {
	return function.NewFdf(tf.f, tf.df, nil)
}

var sqrt2 = testFunction{
	name:  "x^2-2",
	f:     func(x float64) float64 { return x*x - 2 },
	df:    func(x float64) float64 { return 2 * x },
	lower: 1,
	upper: 2,
	guess: 1.5,
	root:  math.Sqrt2,
}

// testFunctions mirrors the classic root-finding test set.
var testFunctions = []testFunction{
	sqrt2,
	{
		name:  "cos(x)-x",
		f:     func(x float64) float64 { return math.Cos(x) - x },
		df:    func(x float64) float64 { return -math.Sin(x) - 1 },
		lower: 0,
		upper: 1,
		guess: 0.5,
		root:  0.7390851332151607,
	},
	{
		name:  "x^3-2x-5",
		f:     func(x float64) float64 { return x*x*x - 2*x - 5 },
		df:    func(x float64) float64 { return 3*x*x - 2 },
		lower: 2,
		upper: 3,
		guess: 2.5,
		root:  2.0945514815423265,
	},
	{
		name:  "exp(x)-10",
		f:     func(x float64) float64 { return math.Exp(x) - 10 },
		df:    math.Exp,
		lower: 0,
		upper: 5,
		guess: 2,
		root:  math.Log(10),
	},
	{
		name:  "sin(x)",
		f:     math.Sin,
		df:    math.Cos,
		lower: 3,
		upper: 4,
		guess: 3,
		root:  math.Pi,
	},
}

var bracketingKinds = []BracketingKind{Bisection, FalsePosition, Brent}

var polishingKinds = []PolishingKind{Newton, Secant, Steffensen}

// assertClose fails the test when got is not within tol of want.
func assertClose(t *testing.T, got, want, tol float64) {
	t.Helper()

	if !scalar.EqualWithinAbsOrRel(got, want, tol, tol) {
		t.Fatalf("got %v, want %v (tolerance %v)", got, want, tol)
	}
}

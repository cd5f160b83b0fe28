package roots

import "math"

// TestInterval reports whether the bracket [lower, upper] is narrower than
// epsAbs + epsRel*min(|lower|, |upper|). When the bracket contains zero only
// epsAbs applies, which keeps the relative test meaningful near the origin.
func TestInterval(lower, upper, epsAbs, epsRel float64) (bool, error) {
	if epsAbs < 0 {
		return false, newError(ErrInvalidTolerance, "absolute tolerance %v is negative", epsAbs).WithOperation("TestInterval")
	}
	if epsRel < 0 {
		return false, newError(ErrInvalidTolerance, "relative tolerance %v is negative", epsRel).WithOperation("TestInterval")
	}
	if lower > upper {
		return false, newError(ErrInvalidTolerance, "lower bound %v is larger than upper bound %v", lower, upper).WithOperation("TestInterval")
	}

	var minAbs float64
	if sameSign(lower, upper) {
		minAbs = math.Min(math.Abs(lower), math.Abs(upper))
	}
	tolerance := epsAbs + epsRel*minAbs
	return math.Abs(upper-lower) < tolerance, nil
}

// TestDelta reports whether successive estimates x0 and x1 satisfy
// |x1 - x0| < epsAbs + epsRel*|x1|.
func TestDelta(x1, x0, epsAbs, epsRel float64) (bool, error) {
	if epsAbs < 0 {
		return false, newError(ErrInvalidTolerance, "absolute tolerance %v is negative", epsAbs).WithOperation("TestDelta")
	}
	if epsRel < 0 {
		return false, newError(ErrInvalidTolerance, "relative tolerance %v is negative", epsRel).WithOperation("TestDelta")
	}
	tolerance := epsAbs + epsRel*math.Abs(x1)
	return x1 == x0 || math.Abs(x1-x0) < tolerance, nil
}

// TestResidual reports whether |f| < epsAbs.
func TestResidual(f, epsAbs float64) (bool, error) {
	if epsAbs < 0 {
		return false, newError(ErrInvalidTolerance, "absolute tolerance %v is negative", epsAbs).WithOperation("TestResidual")
	}
	return math.Abs(f) < epsAbs, nil
}

// Package roots finds roots of one-dimensional continuous functions.
//
// Two families of solvers share the same iterate/query protocol:
//
//   - BracketingSolver (bisection, false_position, brent) shrinks an interval
//     whose endpoints straddle y=0. It cannot fail on a valid bracket and
//     its interval bounds the error.
//   - PolishingSolver (newton, secant, steffensen) refines a single estimate
//     from f and f'. It converges faster when started close to a root and
//     gives no error bound.
//
// A solver performs exactly one step per Iterate call and never tests for
// convergence itself. The caller drives the loop and decides when to stop,
// using TestInterval, TestDelta or TestResidual, or delegates the loop to Run:
//
//	s, _ := roots.NewBracketing(roots.Brent)
//	if err := s.Set(function.Func(f), 0, 5); err != nil {
//		return err
//	}
//	for i := 0; i < 100; i++ {
//		if err := s.Iterate(); err != nil {
//			return err
//		}
//		if ok, _ := roots.TestInterval(s.XLower(), s.XUpper(), 0, 1e-9); ok {
//			break
//		}
//	}
//
// Solvers hold no shared state, so separate instances can run in separate
// goroutines. A single instance must not be used concurrently.
package roots

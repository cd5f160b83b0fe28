package roots

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every error returned by this package wraps one of these,
// so callers can test with errors.Is.
var (
	// ErrUnknownKind is returned when a solver is constructed for an
	// algorithm this package does not provide.
	ErrUnknownKind = errors.New("unknown algorithm kind")
	// ErrInvalidOption is returned when a construction option is out of range.
	ErrInvalidOption = errors.New("invalid solver option")
	// ErrNotSet is returned when a solver is iterated before Set.
	ErrNotSet = errors.New("solver has no function bound")
	// ErrInvalidBracket is returned when the interval is empty or its
	// endpoints do not straddle y=0.
	ErrInvalidBracket = errors.New("invalid bracket")
	// ErrDerivativeDegenerate is returned when a polishing step would divide
	// by a zero or near-zero slope.
	ErrDerivativeDegenerate = errors.New("derivative is degenerate")
	// ErrBadFunction is returned when the function or its derivative
	// evaluates to a non-finite value.
	ErrBadFunction = errors.New("function value is not finite")
	// ErrUnsupported is returned when an operation does not apply to the
	// solver's algorithm.
	ErrUnsupported = errors.New("operation not supported by algorithm")
	// ErrInvalidTolerance is returned by the convergence tests for negative
	// tolerances or reversed bounds.
	ErrInvalidTolerance = errors.New("invalid tolerance")
	// ErrMaxIterations is returned by Run when the iteration budget is spent
	// before convergence.
	ErrMaxIterations = errors.New("maximum iterations reached")
)

// Error describes a failed solver operation.
type Error struct {
	// Message describes the error that occurred.
	Message string
	// Op is the operation that failed, such as "Set" or "Iterate".
	Op string
	// Component is the algorithm name.
	Component string
	// Err is the sentinel or underlying error.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	switch {
	case e.Component != "" && e.Op != "":
		prefix = fmt.Sprintf("%s: %s", e.Component, e.Op)
	case e.Component != "":
		prefix = e.Component
	case e.Op != "":
		prefix = e.Op
	}

	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		}
	}

	if prefix != "" {
		return fmt.Sprintf("%s: %s", prefix, msg)
	}
	return msg
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation sets the failing operation.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent sets the algorithm name.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// newError wraps a sentinel with a formatted message.
func newError(sentinel error, format string, args ...interface{}) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Err:     sentinel,
	}
}

// AsSolverError reports whether err is, or wraps, an *Error.
func AsSolverError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Package errors maps solver failures onto HTTP and JSON-RPC responses and
// carries the request-level recovery middleware.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"github.com/copyleftdev/roots/internal/interp"
	"github.com/copyleftdev/roots/internal/problem"
	"github.com/copyleftdev/roots/internal/roots"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// Implementation-defined server errors.
	CodeSolverFailed = -32000
	CodeNotFound     = -32001
	CodeConflict     = -32002
	CodeUnavailable  = -32003
)

// Sentinels for request-level failures outside the solver.
var (
	ErrNotFound    = stderrors.New("not found")
	ErrConflict    = stderrors.New("conflict")
	ErrUnavailable = stderrors.New("unavailable")
	ErrBadRequest  = stderrors.New("bad request")
)

// Error represents an error with context and stack trace.
type Error struct {
	// The underlying error that was returned
	Err error
	// A human-readable message describing the error
	Message string
	// The operation that was being performed when the error occurred
	Operation string
	// The component or package where the error occurred
	Component string
	// The stack trace
	Stack []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var builder strings.Builder

	if e.Message != "" {
		builder.WriteString(e.Message)
	}

	if e.Operation != "" {
		if builder.Len() > 0 {
			builder.WriteString(": ")
		}
		builder.WriteString("operation=")
		builder.WriteString(e.Operation)
	}

	if e.Component != "" {
		if builder.Len() > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString("component=")
		builder.WriteString(e.Component)
	}

	if e.Err != nil {
		if builder.Len() > 0 {
			builder.WriteString(": ")
		}
		builder.WriteString(e.Err.Error())
	}

	return builder.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithOperation adds an operation to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// WithComponent adds a component to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// StackTrace returns the stack trace as a slice of strings.
func (e *Error) StackTrace() []string {
	return e.Stack
}

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Err:     err,
		Message: msg,
		Stack:   getStackTrace(),
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// getStackTrace returns the current stack trace as a slice of strings.
func getStackTrace() []string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:]) // Skip runtime.Callers, getStackTrace, and the constructor
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]string, 0, n)

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") && !strings.Contains(frame.File, "internal/errors") {
			stack = append(stack, fmt.Sprintf("%s\n\t%s:%d", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}

	return stack
}

// classification is the transport view of an error.
type classification struct {
	status int
	code   int
}

// classify walks the sentinel table in order; the first match wins.
func classify(err error) classification {
	table := []struct {
		target error
		class  classification
	}{
		{ErrNotFound, classification{http.StatusNotFound, CodeNotFound}},
		{ErrConflict, classification{http.StatusConflict, CodeConflict}},
		{ErrUnavailable, classification{http.StatusServiceUnavailable, CodeUnavailable}},
		{ErrBadRequest, classification{http.StatusBadRequest, CodeInvalidParams}},
		{problem.ErrInvalidSpec, classification{http.StatusBadRequest, CodeInvalidParams}},
		{interp.ErrInvalidTable, classification{http.StatusBadRequest, CodeInvalidParams}},
		{interp.ErrUnknownKind, classification{http.StatusBadRequest, CodeInvalidParams}},
		{interp.ErrInvalidRange, classification{http.StatusBadRequest, CodeInvalidParams}},
		{roots.ErrInvalidBracket, classification{http.StatusUnprocessableEntity, CodeSolverFailed}},
		{roots.ErrDerivativeDegenerate, classification{http.StatusUnprocessableEntity, CodeSolverFailed}},
		{roots.ErrBadFunction, classification{http.StatusUnprocessableEntity, CodeSolverFailed}},
		{roots.ErrMaxIterations, classification{http.StatusUnprocessableEntity, CodeSolverFailed}},
		{roots.ErrUnsupported, classification{http.StatusUnprocessableEntity, CodeSolverFailed}},
		{interp.ErrDomain, classification{http.StatusUnprocessableEntity, CodeSolverFailed}},
		{context.DeadlineExceeded, classification{http.StatusGatewayTimeout, CodeSolverFailed}},
		{context.Canceled, classification{http.StatusRequestTimeout, CodeSolverFailed}},
	}
	for _, row := range table {
		if stderrors.Is(err, row.target) {
			return row.class
		}
	}
	return classification{http.StatusInternalServerError, CodeInternalError}
}

// HTTPStatus returns the response status for err.
func HTTPStatus(err error) int {
	return classify(err).status
}

// RPCCode returns the JSON-RPC error code for err.
func RPCCode(err error) int {
	return classify(err).code
}

// Kind names the sentinel behind a solver failure, for metrics labels and
// response bodies. Unknown errors map to "internal".
func Kind(err error) string {
	kinds := []struct {
		target error
		name   string
	}{
		{roots.ErrInvalidBracket, "invalid_bracket"},
		{roots.ErrDerivativeDegenerate, "derivative_degenerate"},
		{roots.ErrBadFunction, "bad_function"},
		{roots.ErrMaxIterations, "max_iterations"},
		{roots.ErrUnsupported, "unsupported"},
		{problem.ErrInvalidSpec, "invalid_spec"},
		{interp.ErrDomain, "domain"},
		{interp.ErrInvalidTable, "invalid_table"},
		{interp.ErrInvalidRange, "invalid_range"},
		{interp.ErrUnknownKind, "unknown_kind"},
		{ErrNotFound, "not_found"},
		{ErrConflict, "conflict"},
		{ErrUnavailable, "unavailable"},
		{ErrBadRequest, "bad_request"},
		{context.Canceled, "canceled"},
		{context.DeadlineExceeded, "deadline"},
	}
	for _, k := range kinds {
		if stderrors.Is(err, k.target) {
			return k.name
		}
	}
	return "internal"
}

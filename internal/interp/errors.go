package interp

import "errors"

var (
	// ErrDomain is returned when a query point lies outside the table.
	// The accompanying value is always NaN.
	ErrDomain = errors.New("interp: point outside interpolation domain")
	// ErrInvalidTable is returned by New for mismatched, too short,
	// non-finite or non-increasing sample arrays.
	ErrInvalidTable = errors.New("interp: invalid sample table")
	// ErrInvalidRange is returned by Integ when the lower limit exceeds the
	// upper one.
	ErrInvalidRange = errors.New("interp: invalid integration range")
	// ErrUnknownKind is returned for an unsupported interpolation kind.
	ErrUnknownKind = errors.New("interp: unknown interpolation kind")
)

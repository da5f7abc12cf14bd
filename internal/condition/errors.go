package condition

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedIdentifier matches every *MalformedIdentifierError.
	ErrMalformedIdentifier = errors.New("malformed identifier filter")
	// ErrInvalidExpression matches every *InvalidExpressionError.
	ErrInvalidExpression = errors.New("invalid expression")
)

// MalformedIdentifierError is returned when an identifier filter cannot be
// expanded. Index is the offending element, or -1 when the whole input is at fault.
type MalformedIdentifierError struct {
	Index  int
	Column string
	Reason string
}

func (e *MalformedIdentifierError) Error() string {
	switch {
	case e.Index >= 0 && e.Column != "":
		return fmt.Sprintf("%s: element %d: column %q: %s", ErrMalformedIdentifier, e.Index, e.Column, e.Reason)
	case e.Index >= 0:
		return fmt.Sprintf("%s: element %d: %s", ErrMalformedIdentifier, e.Index, e.Reason)
	case e.Column != "":
		return fmt.Sprintf("%s: column %q: %s", ErrMalformedIdentifier, e.Column, e.Reason)
	default:
		return fmt.Sprintf("%s: %s", ErrMalformedIdentifier, e.Reason)
	}
}

// Is makes errors.Is(err, ErrMalformedIdentifier) work.
func (e *MalformedIdentifierError) Is(target error) bool {
	return target == ErrMalformedIdentifier
}

// InvalidExpressionError is returned when a fragment or group cannot be added
// to a tree. Err carries the underlying parse error, if any.
type InvalidExpressionError struct {
	Fragment string
	Reason   string
	Err      error
}

func (e *InvalidExpressionError) Error() string {
	msg := ErrInvalidExpression.Error()
	if e.Fragment != "" {
		msg += fmt.Sprintf(" %q", e.Fragment)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrInvalidExpression) work.
func (e *InvalidExpressionError) Is(target error) bool {
	return target == ErrInvalidExpression
}

func (e *InvalidExpressionError) Unwrap() error {
	return e.Err
}

func malformed(index int, column, format string, args ...any) *MalformedIdentifierError {
	return &MalformedIdentifierError{Index: index, Column: column, Reason: fmt.Sprintf(format, args...)}
}

func invalid(fragment, format string, args ...any) *InvalidExpressionError {
	return &InvalidExpressionError{Fragment: fragment, Reason: fmt.Sprintf(format, args...)}
}

package query

import (
	"errors"
	"fmt"
)

// CompileErrorKind classifies a filter compilation failure.
type CompileErrorKind string

const (
	UnknownField        CompileErrorKind = "unknown_field"
	UnsupportedOperator CompileErrorKind = "unsupported_operator"
	EmptyValueSet       CompileErrorKind = "empty_value_set"
	UnparsableValue     CompileErrorKind = "unparsable_value"
)

// CompileError is a user input error raised before any store round-trip.
type CompileError struct {
	Kind     CompileErrorKind
	Field    string
	Operator string
	Value    string
}

func (e *CompileError) Error() string {
	switch e.Kind {
	case UnknownField:
		return fmt.Sprintf("unknown filter field %q", e.Field)
	case UnsupportedOperator:
		return fmt.Sprintf("field %q does not support operator %q", e.Field, e.Operator)
	case EmptyValueSet:
		return fmt.Sprintf("filter on %q with operator %q requires at least one value", e.Field, e.Operator)
	case UnparsableValue:
		return fmt.Sprintf("filter on %q has unparsable value %q", e.Field, e.Value)
	}
	return fmt.Sprintf("invalid filter on %q", e.Field)
}

// IsCompileError reports whether err is a CompileError of the given kind.
func IsCompileError(err error, kind CompileErrorKind) bool {
	var ce *CompileError
	return errors.As(err, &ce) && ce.Kind == kind
}

// AsCompileError unwraps err into a CompileError when possible.
func AsCompileError(err error) (*CompileError, bool) {
	var ce *CompileError
	ok := errors.As(err, &ce)
	return ce, ok
}

package querysql

import (
	"errors"
	"fmt"
)

// ErrorKind classifies translation failures.
type ErrorKind string

const (
	// UnknownOperatorCombination: an array operator applied to a field whose
	// declared type cannot hold arrays (or to the primary key).
	UnknownOperatorCombination ErrorKind = "UnknownOperatorCombination"

	// MalformedFieldPath: a field name that resolves to neither a generated
	// column nor a valid JSON path.
	MalformedFieldPath ErrorKind = "MalformedFieldPath"

	// InvalidCursor: a cursor whose shape does not match the requested sort
	// (arity, value types, sort signature), or both After and Before set.
	InvalidCursor ErrorKind = "InvalidCursor"

	// EmptySortWithCursor: cursor pagination without a sort.
	EmptySortWithCursor ErrorKind = "EmptySortWithCursor"

	// InvalidOperand: an operand that cannot be bound, such as a list given
	// to a scalar comparison, a nil operator or a negative size.
	InvalidOperand ErrorKind = "InvalidOperand"

	// InvalidQuery: a structurally broken tree (nil nodes, nesting deeper
	// than query.MaxDepth).
	InvalidQuery ErrorKind = "InvalidQuery"
)

// TranslateError is returned for every translation failure. Translation
// errors are configuration errors: retrying never helps.
type TranslateError struct {
	Kind    ErrorKind
	Field   string // empty when not tied to a field
	Message string
}

func (e *TranslateError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field %q: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, field, format string, args ...any) *TranslateError {
	return &TranslateError{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a TranslateError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var te *TranslateError
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

// IsTranslateError reports whether err is any TranslateError.
func IsTranslateError(err error) bool {
	var te *TranslateError
	return errors.As(err, &te)
}

package value

import (
	stdjson "encoding/json"
	"fmt"
	"math"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Value is a sealed interface over the SQL values a query can carry.
// Only Null, Text, Integer, Real, Bool and List implement it.
//
// Operator payloads hold Values directly so the translator never has to
// inspect boxed Go values at runtime.
type Value interface {
	sqlValue() // Sealed - only these types implement it
}

// Null is the SQL NULL / JSON null value.
type Null struct{}

func (Null) sqlValue() {}

// Text is a string value.
type Text string

func (Text) sqlValue() {}

// Integer is a 64-bit integer value.
type Integer int64

func (Integer) sqlValue() {}

// Real is a floating point value.
type Real float64

func (Real) sqlValue() {}

// Bool is a boolean value. SQLite stores it as the integers 1 and 0.
type Bool bool

func (Bool) sqlValue() {}

// List is an ordered list of values. Lists are operands of set operators
// (In, NotIn, All) and are never bound as a single SQL parameter.
type List []Value

func (List) sqlValue() {}

// Kind names a Value variant. Used in error messages and tagged encodings.
type Kind string

const (
	KindNull    Kind = "null"
	KindText    Kind = "text"
	KindInteger Kind = "integer"
	KindReal    Kind = "real"
	KindBool    Kind = "bool"
	KindList    Kind = "list"
)

// KindOf reports the variant of v. A nil interface reports KindNull.
func KindOf(v Value) Kind {
	switch v.(type) {
	case nil, Null:
		return KindNull
	case Text:
		return KindText
	case Integer:
		return KindInteger
	case Real:
		return KindReal
	case Bool:
		return KindBool
	case List:
		return KindList
	default:
		return Kind(fmt.Sprintf("%T", v))
	}
}

// IsNull reports whether v is Null or a nil interface.
func IsNull(v Value) bool {
	switch v.(type) {
	case nil, Null:
		return true
	}
	return false
}

// NewList builds a List, copying vals.
func NewList(vals ...Value) List {
	out := make(List, len(vals))
	copy(out, vals)
	return out
}

// Of converts a list of Go values with FromAny and panics on failure.
// Intended for tests and literals known to be valid.
func Of(vals ...any) List {
	out := make(List, len(vals))
	for i, v := range vals {
		out[i] = MustFromAny(v)
	}
	return out
}

// FromAny converts a decoded Go value (from JSON, YAML or a literal) to a Value.
//
// Integral numbers become Integer, other numbers Real. json.Number values are
// parsed the same way. Slices become List. Maps are rejected: objects are not
// comparable operands.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return Text(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Integer(val), nil
	case int8:
		return Integer(val), nil
	case int16:
		return Integer(val), nil
	case int32:
		return Integer(val), nil
	case int64:
		return Integer(val), nil
	case uint8:
		return Integer(val), nil
	case uint16:
		return Integer(val), nil
	case uint32:
		return Integer(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", val)
		}
		return Integer(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", val)
		}
		return Integer(val), nil
	case float32:
		return fromFloat(float64(val)), nil
	case float64:
		return fromFloat(val), nil
	case stdjson.Number:
		return fromNumber(string(val))
	case []any:
		out := make(List, len(val))
		for i, elem := range val {
			ev, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			out[i] = ev
		}
		return out, nil
	case []string:
		out := make(List, len(val))
		for i, s := range val {
			out[i] = Text(s)
		}
		return out, nil
	case map[string]any:
		return nil, fmt.Errorf("objects are not valid operands")
	default:
		return nil, fmt.Errorf("unsupported operand type: %T", v)
	}
}

// MustFromAny is like FromAny but panics on error.
func MustFromAny(v any) Value {
	out, err := FromAny(v)
	if err != nil {
		panic(err)
	}
	return out
}

// fromFloat keeps integral floats as Integer so YAML/JSON decoders that
// produce float64 for every number round-trip to the natural SQL type.
func fromFloat(f float64) Value {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return Integer(int64(f))
	}
	return Real(f)
}

func fromNumber(s string) (Value, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Integer(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return Real(f), nil
}

// Arg converts a scalar Value to a database/sql argument.
// Lists are rejected; the translator expands them into one placeholder per element.
func Arg(v Value) (any, error) {
	switch val := v.(type) {
	case nil, Null:
		return nil, nil
	case Text:
		return string(val), nil
	case Integer:
		return int64(val), nil
	case Real:
		return float64(val), nil
	case Bool:
		return bool(val), nil
	case List:
		return nil, fmt.Errorf("list cannot be bound as a single SQL parameter")
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// Args converts values to database/sql arguments, preserving order.
func Args(vals []Value) ([]any, error) {
	out := make([]any, len(vals))
	for i, v := range vals {
		a, err := Arg(v)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		out[i] = a
	}
	return out, nil
}

// Interface returns the plain Go representation of v
// (nil, string, int64, float64, bool or []any).
func Interface(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Text:
		return string(val)
	case Integer:
		return int64(val)
	case Real:
		return float64(val)
	case Bool:
		return bool(val)
	case List:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Interface(elem)
		}
		return out
	default:
		return nil
	}
}

// String renders v for diagnostics. It is not a SQL literal.
func String(v Value) string {
	data, err := json.Marshal(Interface(v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// Equal reports whether a and b are the same variant with the same contents.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	la, aok := a.(List)
	lb, bok := b.(List)
	if aok || bok {
		if !aok || !bok || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !Equal(la[i], lb[i]) {
				return false
			}
		}
		return true
	}
	return a == b
}

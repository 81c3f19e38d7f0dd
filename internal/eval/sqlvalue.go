package eval

import (
	"cmp"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/roach88/docql/internal/schema"
	"github.com/roach88/docql/internal/value"
)

// Only Null, Integer, Real and Text occur as SQL values here. Bool binds as
// an integer and lists are expanded before binding.

// param converts a bound operand to the value the driver hands SQLite.
func param(v value.Value) value.Value {
	switch x := v.(type) {
	case nil:
		return value.Null{}
	case value.Bool:
		if x {
			return value.Integer(1)
		}
		return value.Integer(0)
	}
	return v
}

// storageClass orders values across types: NULL, then numbers, then text.
func storageClass(v value.Value) int {
	switch v.(type) {
	case value.Integer, value.Real:
		return 1
	case value.Text:
		return 2
	default:
		return 0
	}
}

// compareValues orders two values the way ORDER BY does under BINARY
// collation. NULLs compare equal to each other and below everything else.
func compareValues(a, b value.Value) int {
	ca, cb := storageClass(a), storageClass(b)
	if ca != cb {
		return cmp.Compare(ca, cb)
	}
	switch ca {
	case 1:
		ai, aInt := a.(value.Integer)
		bi, bInt := b.(value.Integer)
		if aInt && bInt {
			return cmp.Compare(ai, bi)
		}
		return cmp.Compare(toFloat(a), toFloat(b))
	case 2:
		return strings.Compare(string(a.(value.Text)), string(b.(value.Text)))
	default:
		return 0
	}
}

func toFloat(v value.Value) float64 {
	switch x := v.(type) {
	case value.Integer:
		return float64(x)
	case value.Real:
		return float64(x)
	}
	return 0
}

// textOf renders a value the way CAST(x AS TEXT) does. ok is false for NULL.
func textOf(v value.Value) (string, bool) {
	switch x := v.(type) {
	case value.Text:
		return string(x), true
	case value.Integer:
		return strconv.FormatInt(int64(x), 10), true
	case value.Real:
		return realText(float64(x)), true
	}
	return "", false
}

// realText mimics SQLite's "%!.15g": always a decimal point or exponent.
func realText(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	s := strconv.FormatFloat(f, 'g', 15, 64)
	if strings.ContainsAny(s, ".n") {
		return s
	}
	if i := strings.IndexByte(s, 'e'); i >= 0 {
		return s[:i] + ".0" + s[i:]
	}
	return s + ".0"
}

// numeric applies NUMERIC affinity: text holding a well-formed number
// becomes that number, anything else is unchanged.
func numeric(v value.Value) value.Value {
	t, ok := v.(value.Text)
	if !ok {
		return v
	}
	s := strings.TrimSpace(string(t))
	if s == "" || strings.ContainsAny(s, "xXpP_iInN") {
		return v
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Integer(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.Real(f)
	}
	return v
}

func exactInteger(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < -9223372036854775808 || f >= 9223372036854775808 {
		return 0, false
	}
	return int64(f), true
}

// stored converts v as storing it in a column of affinity aff would.
func stored(aff schema.Affinity, v value.Value) value.Value {
	switch aff {
	case schema.AffinityText:
		if _, isText := v.(value.Text); !isText {
			if s, ok := textOf(v); ok {
				return value.Text(s)
			}
		}
	case schema.AffinityNumeric, schema.AffinityInteger:
		v = numeric(v)
		if r, ok := v.(value.Real); ok {
			if i, exact := exactInteger(float64(r)); exact {
				return value.Integer(i)
			}
		}
	case schema.AffinityReal:
		v = numeric(v)
		if i, ok := v.(value.Integer); ok {
			return value.Real(float64(i))
		}
	}
	return v
}

// coerce converts an operand compared against an expression of affinity
// aff. Parameters have no affinity of their own, so the expression's wins.
func coerce(aff schema.Affinity, v value.Value) value.Value {
	switch aff {
	case schema.AffinityText:
		if _, isText := v.(value.Text); !isText {
			if s, ok := textOf(v); ok {
				return value.Text(s)
			}
		}
	case schema.AffinityNumeric, schema.AffinityInteger, schema.AffinityReal:
		return numeric(v)
	}
	return v
}

// like implements SQLite's default LIKE: % and _ wildcards, no escape
// character, ASCII-only case folding.
func like(pattern, s string) bool {
	if pattern == "" {
		return s == ""
	}
	p, pw := utf8.DecodeRuneInString(pattern)
	switch p {
	case '%':
		rest := strings.TrimLeft(pattern, "%")
		if rest == "" {
			return true
		}
		for i := 0; ; {
			if like(rest, s[i:]) {
				return true
			}
			if i >= len(s) {
				return false
			}
			_, w := utf8.DecodeRuneInString(s[i:])
			i += w
		}
	case '_':
		if s == "" {
			return false
		}
		_, sw := utf8.DecodeRuneInString(s)
		return like(pattern[pw:], s[sw:])
	default:
		if s == "" {
			return false
		}
		c, sw := utf8.DecodeRuneInString(s)
		if foldASCII(c) != foldASCII(p) {
			return false
		}
		return like(pattern[pw:], s[sw:])
	}
}

func foldASCII(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

package value

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// tagged is the wire form of a scalar value that keeps its variant:
// a two element array [kind, payload]. Plain JSON loses the Integer/Real
// distinction, which cursor tokens must preserve.
type tagged [2]any

// MarshalTagged encodes scalar values in the tagged wire form.
func MarshalTagged(vals []Value) ([]byte, error) {
	out := make([]tagged, len(vals))
	for i, v := range vals {
		if _, isList := v.(List); isList {
			return nil, fmt.Errorf("value %d: lists cannot be tagged", i)
		}
		payload := Interface(v)
		if r, ok := v.(Real); ok {
			// JSON has no representation for NaN or infinities.
			f := float64(r)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("value %d: non-finite real", i)
			}
			payload = strconv.FormatFloat(f, 'g', -1, 64)
		}
		out[i] = tagged{string(KindOf(v)), payload}
	}
	return json.Marshal(out)
}

// UnmarshalTagged decodes values written by MarshalTagged.
func UnmarshalTagged(data []byte) ([]Value, error) {
	var raw [][]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode tagged values: %w", err)
	}

	out := make([]Value, len(raw))
	for i, pair := range raw {
		if len(pair) != 2 {
			return nil, fmt.Errorf("value %d: expected [kind, payload]", i)
		}
		kind, ok := pair[0].(string)
		if !ok {
			return nil, fmt.Errorf("value %d: missing kind tag", i)
		}
		v, err := untag(Kind(kind), pair[1])
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func untag(kind Kind, payload any) (Value, error) {
	switch kind {
	case KindNull:
		if payload != nil {
			return nil, fmt.Errorf("null carries a payload")
		}
		return Null{}, nil
	case KindText:
		s, ok := payload.(string)
		if !ok {
			return nil, fmt.Errorf("text payload is %T", payload)
		}
		return Text(s), nil
	case KindBool:
		b, ok := payload.(bool)
		if !ok {
			return nil, fmt.Errorf("bool payload is %T", payload)
		}
		return Bool(b), nil
	case KindInteger:
		n, err := FromAny(payload)
		if err != nil {
			return nil, err
		}
		i, ok := n.(Integer)
		if !ok {
			return nil, fmt.Errorf("integer payload is %s", KindOf(n))
		}
		return i, nil
	case KindReal:
		s, ok := payload.(string)
		if !ok {
			return nil, fmt.Errorf("real payload is %T", payload)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("real payload: %w", err)
		}
		return Real(f), nil
	default:
		return nil, fmt.Errorf("unknown kind tag %q", kind)
	}
}

// MarshalPlain encodes values as plain JSON (CLI and log output).
func MarshalPlain(vals []Value) ([]byte, error) {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = Interface(v)
	}
	return json.Marshal(out)
}

package querysql

import (
	"encoding/base64"

	jsoniter "github.com/json-iterator/go"

	"github.com/roach88/docql/internal/query"
	"github.com/roach88/docql/internal/value"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// cursorToken is the decoded form of an opaque cursor.
type cursorToken struct {
	Values jsoniter.RawMessage `json:"v"`
	ID     string              `json:"id"`
	Sort   string              `json:"s"`
}

// SortSignature fingerprints a sort specification. Cursor tokens carry it so
// a token is only accepted by the sort it was issued for.
func SortSignature(sort []query.SortField) (string, error) {
	spec := make([]any, len(sort))
	for i, sf := range sort {
		dir := sf.Direction
		if dir != query.Desc {
			dir = query.Asc
		}
		spec[i] = map[string]any{"field": sf.Field, "dir": string(dir)}
	}
	return value.Fingerprint(value.DomainSort, spec)
}

// EncodeCursor renders c as an opaque URL-safe token bound to sort.
func EncodeCursor(sort []query.SortField, c query.Cursor) (string, error) {
	if len(sort) == 0 {
		return "", newError(EmptySortWithCursor, "", "cursor tokens require a sort")
	}
	if len(c.Values) != len(sort) {
		return "", newError(InvalidCursor, "", "cursor has %d values, sort has %d fields", len(c.Values), len(sort))
	}
	vals, err := value.MarshalTagged(c.Values)
	if err != nil {
		return "", newError(InvalidCursor, "", "%v", err)
	}
	sig, err := SortSignature(sort)
	if err != nil {
		return "", newError(InvalidCursor, "", "%v", err)
	}
	data, err := json.Marshal(cursorToken{Values: vals, ID: c.ID, Sort: sig})
	if err != nil {
		return "", newError(InvalidCursor, "", "%v", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeCursor parses a token produced by EncodeCursor for the same sort.
func DecodeCursor(sort []query.SortField, token string) (*query.Cursor, error) {
	if len(sort) == 0 {
		return nil, newError(EmptySortWithCursor, "", "cursor tokens require a sort")
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, newError(InvalidCursor, "", "malformed token: %v", err)
	}
	var tok cursorToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, newError(InvalidCursor, "", "malformed token: %v", err)
	}

	sig, err := SortSignature(sort)
	if err != nil {
		return nil, newError(InvalidCursor, "", "%v", err)
	}
	if tok.Sort != sig {
		return nil, newError(InvalidCursor, "", "token was issued for a different sort")
	}

	vals, err := value.UnmarshalTagged(tok.Values)
	if err != nil {
		return nil, newError(InvalidCursor, "", "%v", err)
	}
	if len(vals) != len(sort) {
		return nil, newError(InvalidCursor, "", "cursor has %d values, sort has %d fields", len(vals), len(sort))
	}
	return &query.Cursor{Values: vals, ID: tok.ID}, nil
}

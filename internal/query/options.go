package query

import (
	"fmt"
	"strings"

	"github.com/roach88/docql/internal/value"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts "asc"/"desc" in any case, plus "1"/"-1".
// The empty string is Asc.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "1":
		return Asc, nil
	case "desc", "-1":
		return Desc, nil
	}
	return "", fmt.Errorf("invalid sort direction %q", s)
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	if d == Desc {
		return Asc
	}
	return Desc
}

// SQL returns the ORDER BY keyword.
func (d Direction) SQL() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// SortField orders results by one field.
type SortField struct {
	Field     string
	Direction Direction
}

// Cursor is a keyset position: the sort-field values of a boundary row
// followed by that row's id.
type Cursor struct {
	Values []value.Value
	ID     string
}

// Options controls ordering and pagination.
//
// Limit 0 means unlimited. After and Before are mutually exclusive and
// require a non-empty Sort. A cursor takes precedence over Skip.
type Options struct {
	Sort   []SortField
	Limit  int64
	Skip   int64
	After  *Cursor
	Before *Cursor
}

// SortBy is shorthand for building a sort specification.
func SortBy(fields ...SortField) []SortField {
	out := make([]SortField, len(fields))
	copy(out, fields)
	return out
}

func Ascending(field string) SortField  { return SortField{Field: field, Direction: Asc} }
func Descending(field string) SortField { return SortField{Field: field, Direction: Desc} }

// HasCursor reports whether either cursor is set.
func (o Options) HasCursor() bool {
	return o.After != nil || o.Before != nil
}

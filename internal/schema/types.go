package schema

import (
	"fmt"
	"strings"
)

// SQLType is the declared type of a document field. It fixes the column
// affinity of the generated column backing an indexed field.
type SQLType string

const (
	Text    SQLType = "TEXT"
	Integer SQLType = "INTEGER"
	Real    SQLType = "REAL"
	Blob    SQLType = "BLOB"
	Numeric SQLType = "NUMERIC"
	Boolean SQLType = "BOOLEAN"
	// JSON holds arrays or objects as JSON text.
	JSON SQLType = "JSON"
)

// ParseType accepts the canonical names in any case plus a few aliases
// used in schema files ("string", "int", "float", "bool", "array", "object").
func ParseType(s string) (SQLType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "string":
		return Text, nil
	case "integer", "int":
		return Integer, nil
	case "real", "float", "double":
		return Real, nil
	case "blob", "bytes":
		return Blob, nil
	case "numeric", "number":
		return Numeric, nil
	case "boolean", "bool":
		return Boolean, nil
	case "json", "array", "object":
		return JSON, nil
	}
	return "", fmt.Errorf("unknown type %q", s)
}

// IsValid reports whether t is one of the declared types.
func (t SQLType) IsValid() bool {
	switch t {
	case Text, Integer, Real, Blob, Numeric, Boolean, JSON:
		return true
	}
	return false
}

// ColumnType is the type used in CREATE TABLE. JSON is stored as TEXT.
func (t SQLType) ColumnType() string {
	if t == JSON {
		return string(Text)
	}
	return string(t)
}

// Affinity is SQLite's column affinity for the declared column type.
type Affinity int

const (
	AffinityBlob Affinity = iota
	AffinityText
	AffinityNumeric
	AffinityInteger
	AffinityReal
)

// Affinity returns the column affinity SQLite derives from ColumnType.
func (t SQLType) Affinity() Affinity {
	switch t {
	case Text, JSON:
		return AffinityText
	case Integer:
		return AffinityInteger
	case Real:
		return AffinityReal
	case Numeric, Boolean:
		return AffinityNumeric
	default:
		return AffinityBlob
	}
}

// SupportsArrayOps reports whether array operators may target a field of
// this type. Arrays live in JSON text, so only text-like types qualify.
func (t SQLType) SupportsArrayOps() bool {
	switch t {
	case JSON, Text, Blob:
		return true
	}
	return false
}

// FieldDef declares one document field.
type FieldDef struct {
	// Name is the dotted field name used in queries ("profile.bio").
	Name string
	// Path is the JSON path into the body. Defaults to DefaultPath(Name).
	Path string
	Type SQLType
	// Indexed fields get a generated column and an index.
	Indexed bool
	// Unique implies Indexed.
	Unique   bool
	Nullable bool
}

// IndexDef declares a compound index over indexed fields.
type IndexDef struct {
	Name   string
	Fields []string
	Unique bool
}

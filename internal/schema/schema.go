// Package schema declares the document fields a collection knows about and
// materialises them as SQLite DDL.
//
// A Schema is built once with New, which validates and freezes it. There
// are no mutators; accessors return copies, so a Schema is safe for
// concurrent use by any number of translators.
//
// Indexed fields are backed by a virtual generated column named Column(name)
// holding json_extract(body, path). The translator addresses those columns
// directly and falls back to json_extract for everything else.
package schema

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue/token"
)

// Error reports an invalid schema declaration.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	if e.Field == "" {
		return "schema: " + e.Message
	}
	return fmt.Sprintf("schema: field %q: %s", e.Field, e.Message)
}

// Schema is a frozen set of field and index declarations.
type Schema struct {
	fields  []FieldDef
	byName  map[string]int
	indexes []IndexDef
}

// New validates fields and indexes and returns a frozen Schema.
//
// Defaults applied: empty Path becomes DefaultPath(Name), empty Type
// becomes Text, Unique implies Indexed.
func New(fields []FieldDef, indexes []IndexDef) (*Schema, error) {
	s := &Schema{
		fields:  make([]FieldDef, 0, len(fields)),
		byName:  make(map[string]int, len(fields)),
		indexes: make([]IndexDef, 0, len(indexes)),
	}
	columns := make(map[string]string, len(fields))

	for _, f := range fields {
		if err := ValidateFieldName(f.Name); err != nil {
			return nil, &Error{Field: f.Name, Message: err.Error()}
		}
		if f.Name == IDColumn || f.Name == BodyColumn {
			return nil, &Error{Field: f.Name, Message: "reserved field name"}
		}
		if _, dup := s.byName[f.Name]; dup {
			return nil, &Error{Field: f.Name, Message: "declared twice"}
		}
		if f.Path == "" {
			f.Path = DefaultPath(f.Name)
		} else if err := ValidatePath(f.Path); err != nil {
			return nil, &Error{Field: f.Name, Message: err.Error()}
		}
		if f.Type == "" {
			f.Type = Text
		}
		if !f.Type.IsValid() {
			return nil, &Error{Field: f.Name, Message: fmt.Sprintf("unknown type %q", f.Type)}
		}
		if f.Unique {
			f.Indexed = true
		}
		col := Column(f.Name)
		if other, taken := columns[col]; taken {
			return nil, &Error{Field: f.Name, Message: fmt.Sprintf("column %s collides with field %q", col, other)}
		}
		columns[col] = f.Name

		s.byName[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}

	names := make(map[string]bool, len(indexes))
	for i, idx := range indexes {
		if len(idx.Fields) == 0 {
			return nil, &Error{Message: fmt.Sprintf("index %d (%s) has no fields", i, idx.Name)}
		}
		if idx.Name != "" {
			if err := ValidateTableName(idx.Name); err != nil {
				return nil, &Error{Message: fmt.Sprintf("index %d: invalid name %q", i, idx.Name)}
			}
			if names[idx.Name] {
				return nil, &Error{Message: fmt.Sprintf("index %q declared twice", idx.Name)}
			}
			names[idx.Name] = true
		}
		for _, name := range idx.Fields {
			pos, ok := s.byName[name]
			if !ok {
				return nil, &Error{Field: name, Message: fmt.Sprintf("index %q references an undeclared field", idx.Name)}
			}
			if !s.fields[pos].Indexed {
				return nil, &Error{Field: name, Message: fmt.Sprintf("index %q references a field that is not indexed", idx.Name)}
			}
		}
		idx.Fields = slices.Clone(idx.Fields)
		s.indexes = append(s.indexes, idx)
	}

	return s, nil
}

// MustNew is like New but panics on error.
func MustNew(fields []FieldDef, indexes []IndexDef) *Schema {
	s, err := New(fields, indexes)
	if err != nil {
		panic(err)
	}
	return s
}

// Field returns the declaration of name.
func (s *Schema) Field(name string) (FieldDef, bool) {
	if s == nil {
		return FieldDef{}, false
	}
	pos, ok := s.byName[name]
	if !ok {
		return FieldDef{}, false
	}
	return s.fields[pos], true
}

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []FieldDef {
	if s == nil {
		return nil
	}
	return slices.Clone(s.fields)
}

// IndexedFields returns the fields backed by generated columns.
func (s *Schema) IndexedFields() []FieldDef {
	if s == nil {
		return nil
	}
	var out []FieldDef
	for _, f := range s.fields {
		if f.Indexed {
			out = append(out, f)
		}
	}
	return out
}

// Indexes returns the compound index declarations.
func (s *Schema) Indexes() []IndexDef {
	if s == nil {
		return nil
	}
	out := make([]IndexDef, len(s.indexes))
	for i, idx := range s.indexes {
		idx.Fields = slices.Clone(idx.Fields)
		out[i] = idx
	}
	return out
}

// IsUniqueKey reports whether name identifies at most one row with a
// non-NULL value: the primary key, or an indexed unique non-nullable field.
func (s *Schema) IsUniqueKey(name string) bool {
	if name == IDColumn {
		return true
	}
	f, ok := s.Field(name)
	return ok && f.Indexed && f.Unique && !f.Nullable
}

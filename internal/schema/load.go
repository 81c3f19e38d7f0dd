package schema

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

// fileDoc is the YAML/JSON schema file layout:
//
//	fields:
//	  - name: status
//	    type: text
//	    indexed: true
//	    nullable: false
//	  - name: profile.bio
//	indexes:
//	  - name: users_by_status_created
//	    fields: [status, createdAt]
type fileDoc struct {
	Fields  []fieldDoc `yaml:"fields"`
	Indexes []indexDoc `yaml:"indexes"`
}

type fieldDoc struct {
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	Type     string `yaml:"type"`
	Indexed  bool   `yaml:"indexed"`
	Unique   bool   `yaml:"unique"`
	Nullable *bool  `yaml:"nullable"` // nil = nullable
}

type indexDoc struct {
	Name   string   `yaml:"name"`
	Fields []string `yaml:"fields"`
	Unique bool     `yaml:"unique"`
}

// LoadYAML reads a schema document. JSON is accepted as well.
// Fields are nullable unless the file says otherwise.
func LoadYAML(r io.Reader) (*Schema, error) {
	var doc fileDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return New(nil, nil)
		}
		return nil, fmt.Errorf("schema: decode: %w", err)
	}

	fields := make([]FieldDef, 0, len(doc.Fields))
	for _, fd := range doc.Fields {
		typ, err := ParseType(fd.Type)
		if err != nil {
			return nil, &Error{Field: fd.Name, Message: err.Error()}
		}
		nullable := true
		if fd.Nullable != nil {
			nullable = *fd.Nullable
		}
		fields = append(fields, FieldDef{
			Name:     fd.Name,
			Path:     fd.Path,
			Type:     typ,
			Indexed:  fd.Indexed,
			Unique:   fd.Unique,
			Nullable: nullable,
		})
	}

	indexes := make([]IndexDef, 0, len(doc.Indexes))
	for _, id := range doc.Indexes {
		indexes = append(indexes, IndexDef(id))
	}
	return New(fields, indexes)
}

// LoadFile loads a schema by extension: .yaml, .yml and .json use LoadYAML,
// .cue uses CompileCUE on the top-level "schema" value when present.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		ctx := cuecontext.New()
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		if inner := v.LookupPath(cue.ParsePath("schema")); inner.Exists() {
			v = inner
		}
		return CompileCUE(v)
	case ".yaml", ".yml", ".json":
		return LoadYAML(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("schema: unsupported file extension %q", filepath.Ext(path))
	}
}

// CompileCUE builds a Schema from a CUE value:
//
//	fields: {
//	    status: {type: "text", indexed: true, nullable: false}
//	    "profile.bio": {}
//	}
//	indexes: by_status: {fields: ["status", "createdAt"], unique: false}
//
// Field order follows the CUE declaration order.
func CompileCUE(v cue.Value) (*Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	var fields []FieldDef
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if fieldsVal.Exists() {
		iter, err := fieldsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			f, err := compileCUEField(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
		}
	}

	var indexes []IndexDef
	indexesVal := v.LookupPath(cue.ParsePath("indexes"))
	if indexesVal.Exists() {
		iter, err := indexesVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			idx := IndexDef{Name: iter.Label()}
			var names []string
			if err := iter.Value().LookupPath(cue.ParsePath("fields")).Decode(&names); err != nil {
				return nil, &Error{Field: idx.Name, Message: "index fields must be a list of strings", Pos: iter.Value().Pos()}
			}
			idx.Fields = names
			idx.Unique, err = optionalBool(iter.Value(), "unique", false)
			if err != nil {
				return nil, err
			}
			indexes = append(indexes, idx)
		}
	}

	return New(fields, indexes)
}

func compileCUEField(name string, v cue.Value) (FieldDef, error) {
	f := FieldDef{Name: name}

	typVal := v.LookupPath(cue.ParsePath("type"))
	if typVal.Exists() {
		s, err := typVal.String()
		if err != nil {
			return f, formatCUEError(err)
		}
		f.Type, err = ParseType(s)
		if err != nil {
			return f, &Error{Field: name, Message: err.Error(), Pos: typVal.Pos()}
		}
	} else {
		f.Type = Text
	}

	pathVal := v.LookupPath(cue.ParsePath("path"))
	if pathVal.Exists() {
		s, err := pathVal.String()
		if err != nil {
			return f, formatCUEError(err)
		}
		f.Path = s
	}

	var err error
	if f.Indexed, err = optionalBool(v, "indexed", false); err != nil {
		return f, err
	}
	if f.Unique, err = optionalBool(v, "unique", false); err != nil {
		return f, err
	}
	if f.Nullable, err = optionalBool(v, "nullable", true); err != nil {
		return f, err
	}
	return f, nil
}

func optionalBool(v cue.Value, field string, def bool) (bool, error) {
	val := v.LookupPath(cue.ParsePath(field))
	if !val.Exists() {
		return def, nil
	}
	b, err := val.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Report the first error with a position.
	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &Error{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}

package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/zoobzio/sentinel"
)

// FromStruct derives a Schema from the `doc` tags of T:
//
//	type User struct {
//	    Email  string   `json:"email" doc:"email,unique"`
//	    Status string   `json:"status" doc:"status,indexed"`
//	    Bio    *string  `json:"bio" doc:"profile.bio,path=$.profile.bio"`
//	    Tags   []string `json:"tags" doc:"tags"`
//	}
//
// Tag options: indexed, unique, nullable, type=<type>, path=<json path>.
// An empty name falls back to the json tag, then the Go field name; "-"
// skips the field. Without type= the type is inferred from the Go type.
// Pointer, slice and map fields are nullable.
func FromStruct[T any]() (*Schema, error) {
	sentinel.Tag("doc")
	sentinel.Tag("json")

	metadata := sentinel.Inspect[T]()

	fields := make([]FieldDef, 0, len(metadata.Fields))
	for _, fm := range metadata.Fields {
		tag, ok := fm.Tags["doc"]
		if !ok {
			continue
		}
		f, skip, err := parseDocTag(tag, fm.Name, fm.Tags["json"], fm.ReflectType)
		if err != nil {
			return nil, &Error{Field: fm.Name, Message: err.Error()}
		}
		if skip {
			continue
		}
		fields = append(fields, f)
	}
	return New(fields, nil)
}

func parseDocTag(tag, goName, jsonTag string, rt reflect.Type) (FieldDef, bool, error) {
	parts := strings.Split(tag, ",")
	name := strings.TrimSpace(parts[0])
	if name == "-" {
		return FieldDef{}, true, nil
	}
	if name == "" {
		name, _, _ = strings.Cut(jsonTag, ",")
	}
	if name == "" || name == "-" {
		name = goName
	}

	f := FieldDef{Name: name}
	nullable, inferred := inferType(rt)
	f.Nullable = nullable
	f.Type = inferred

	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		key, val, _ := strings.Cut(opt, "=")
		switch key {
		case "indexed":
			f.Indexed = true
		case "unique":
			f.Unique = true
		case "nullable":
			f.Nullable = true
		case "type":
			t, err := ParseType(val)
			if err != nil {
				return f, false, err
			}
			f.Type = t
		case "path":
			f.Path = val
		case "":
		default:
			return f, false, fmt.Errorf("unknown doc tag option %q", key)
		}
	}
	return f, false, nil
}

var timeType = reflect.TypeOf(time.Time{})

// inferType maps a Go type to a declared type and default nullability.
func inferType(rt reflect.Type) (nullable bool, t SQLType) {
	if rt == nil {
		return true, Text
	}
	if rt.Kind() == reflect.Pointer {
		nullable = true
		rt = rt.Elem()
	}
	if rt == timeType {
		// time.Time marshals as RFC 3339 text, which sorts chronologically.
		return nullable, Text
	}

	switch rt.Kind() {
	case reflect.String:
		return nullable, Text
	case reflect.Bool:
		return nullable, Boolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return nullable, Integer
	case reflect.Float32, reflect.Float64:
		return nullable, Real
	case reflect.Slice, reflect.Array, reflect.Map:
		return true, JSON
	default:
		return nullable, JSON
	}
}

package querysql

import (
	"strings"

	"github.com/roach88/docql/internal/schema"
)

// address is a resolved field reference.
type address struct {
	field string
	// expr reads the field's value.
	expr string
	// path is a SQL expression evaluating to the field's JSON path, for use
	// with json_type, json_each and json_array_length against body. Empty
	// for the primary key.
	path string
	// decl is the schema declaration, when the field is declared.
	decl *schema.FieldDef
}

// scope is the binding a field name is resolved against. The zero value is
// document scope; inside ElemMatch/Index, alias names the json_each row.
type scope struct {
	alias string
}

func (s scope) element() bool { return s.alias != "" }

// resolve maps a field name to its address.
//
// Document scope: "id" is the primary key, indexed declared fields are their
// generated column, anything else is json_extract over body using the
// declared path or $.<name>.
//
// Element scope: "" is the array element itself and "f" is the member f of
// the element, both read through the row's fullkey.
func (t *translation) resolve(field string, sc scope) (address, error) {
	if sc.element() {
		if field == "" {
			path := sc.alias + ".fullkey"
			return address{field: field, expr: sc.alias + ".value", path: path}, nil
		}
		if err := schema.ValidateFieldName(field); err != nil {
			return address{}, newError(MalformedFieldPath, field, "%v", err)
		}
		path := sc.alias + ".fullkey || " + quoteLiteral(schema.RelativePath(field))
		return address{field: field, expr: jsonFn("json_extract", path), path: path}, nil
	}

	if field == "" {
		return address{}, newError(MalformedFieldPath, field, "empty field name outside element scope")
	}
	if field == schema.IDColumn {
		return address{field: field, expr: schema.IDColumn}, nil
	}
	if err := schema.ValidateFieldName(field); err != nil {
		return address{}, newError(MalformedFieldPath, field, "%v", err)
	}

	if decl, ok := t.schema.Field(field); ok {
		path := quoteLiteral(decl.Path)
		addr := address{field: field, path: path, decl: &decl}
		if decl.Indexed {
			addr.expr = schema.Column(field)
		} else {
			addr.expr = jsonFn("json_extract", path)
		}
		return addr, nil
	}

	path := quoteLiteral(schema.DefaultPath(field))
	return address{field: field, expr: jsonFn("json_extract", path), path: path}, nil
}

// jsonFn renders fn(body,<path>).
func jsonFn(fn, path string) string {
	return fn + "(" + schema.BodyColumn + "," + path + ")"
}

// quoteLiteral renders a SQL string literal. Inputs are validated paths, so
// the escaping never triggers in practice.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
